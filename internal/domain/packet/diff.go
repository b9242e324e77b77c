package packet

import (
	"unicode/utf8"

	"github.com/Strob0t/FeatureForge/internal/diff"
)

// ComputeDiff builds the change summary between prev and curr. prev may be nil
// for a version-1 packet, in which case everything diffs against empty text.
//
// The summary field is diffed as one blob; artifacts are diffed structurally,
// matched by title. An artifact whose content is not valid text gets a null
// ContentDiff rather than failing the whole computation.
func ComputeDiff(prev, curr *HandoffPacket) *VersionDiff {
	var prevSummary string
	var prevArtifacts []Artifact
	if prev != nil {
		prevSummary = prev.OutputSummary
		prevArtifacts = prev.OutputArtifacts
	}

	vd := &VersionDiff{
		Summary:   diff.Diff(prevSummary, curr.OutputSummary),
		Artifacts: []ArtifactDiff{},
	}

	prevByTitle := make(map[string]Artifact, len(prevArtifacts))
	for _, a := range prevArtifacts {
		prevByTitle[a.Title] = a
	}

	seen := make(map[string]bool, len(curr.OutputArtifacts))
	for _, a := range curr.OutputArtifacts {
		seen[a.Title] = true
		old := prevByTitle[a.Title].Content
		vd.Artifacts = append(vd.Artifacts, diffArtifact(a.Title, old, a.Content))
	}

	// Artifacts dropped since the previous version show up as pure deletions.
	for _, a := range prevArtifacts {
		if !seen[a.Title] {
			vd.Artifacts = append(vd.Artifacts, diffArtifact(a.Title, a.Content, ""))
		}
	}

	return vd
}

func diffArtifact(title, before, after string) ArtifactDiff {
	if !utf8.ValidString(before) || !utf8.ValidString(after) {
		return ArtifactDiff{Title: title, ContentDiff: nil}
	}
	return ArtifactDiff{Title: title, ContentDiff: diff.Diff(before, after)}
}
