package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/logger"
)

// nodeIDSuffix matches the design tool's internal object identifier
// appended to path segments, e.g. "PageA_56:78".
var nodeIDSuffix = regexp.MustCompile(`_\d+:\d+$`)

// Classification is the logical identity derived from a storage path.
type Classification struct {
	DisplayName string
	TeamName    string
	ProjectName string
	FileName    string
	PRDFileName string
	FigmaURL    string
}

// PathClassifier derives document identity from storage paths and, for
// design payloads, an optional figma URL from the JSON content.
type PathClassifier struct{}

// NewPathClassifier creates a classifier.
func NewPathClassifier() *PathClassifier {
	return &PathClassifier{}
}

// Classify derives the identity fields for a path. content is the raw
// object payload, consulted only for design JSON files; it may be nil.
func (c *PathClassifier) Classify(storagePath string, kind domain.Kind, content []byte) Classification {
	switch kind {
	case domain.KindDesign:
		cls := classifyDesignPath(storagePath)
		cls.FigmaURL = extractFigmaURL(content)
		return cls
	case domain.KindPRD:
		return classifyPRDPath(storagePath)
	default:
		return Classification{DisplayName: lastSegment(storagePath)}
	}
}

// classifyDesignPath interprets a full hierarchy of
// root/team/project/file/page/screen…; shorter paths fall back to the
// parent folder name.
func classifyDesignPath(storagePath string) Classification {
	segs := strings.Split(strings.Trim(storagePath, "/"), "/")

	if len(segs) >= 6 {
		return Classification{
			TeamName:    stripNodeID(segs[1]),
			ProjectName: stripNodeID(segs[2]),
			FileName:    stripNodeID(segs[3]),
			DisplayName: stripNodeID(segs[4]),
		}
	}

	if len(segs) >= 2 {
		return Classification{DisplayName: stripNodeID(segs[len(segs)-2])}
	}
	return Classification{DisplayName: stripNodeID(lastSegment(storagePath))}
}

// classifyPRDPath interprets root/team/filename.ext. The literal
// filename, extension included, is the identity-bearing field.
func classifyPRDPath(storagePath string) Classification {
	segs := strings.Split(strings.Trim(storagePath, "/"), "/")

	cls := Classification{}
	if len(segs) >= 3 {
		cls.TeamName = segs[1]
	}
	name := segs[len(segs)-1]
	cls.PRDFileName = name
	cls.DisplayName = strings.TrimSuffix(name, "."+domain.PathExtension(name))
	return cls
}

// stripNodeID removes a trailing design-tool identifier from a segment.
func stripNodeID(segment string) string {
	return nodeIDSuffix.ReplaceAllString(segment, "")
}

func lastSegment(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	return segs[len(segs)-1]
}

// figmaURLExtractors is the prioritised lookup chain for the design
// payload's figma identifier; the first hit wins.
var figmaURLExtractors = []func(map[string]any) (string, bool){
	func(m map[string]any) (string, bool) {
		ids, ok := m["identifiers"].(map[string]any)
		if !ok {
			return "", false
		}
		u, ok := ids["figmaUrl"].(string)
		return u, ok && u != ""
	},
	func(m map[string]any) (string, bool) {
		u, ok := m["figmaUrl"].(string)
		return u, ok && u != ""
	},
}

// extractFigmaURL pulls the figma URL out of a design JSON payload.
// Parse failure or absence is not an error; ingestion proceeds with the
// field unset.
func extractFigmaURL(content []byte) string {
	if len(content) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		logger.Debug("figma url extraction: payload is not a json object: %v", err)
		return ""
	}

	for _, extract := range figmaURLExtractors {
		if u, ok := extract(payload); ok {
			return u
		}
	}
	return ""
}
