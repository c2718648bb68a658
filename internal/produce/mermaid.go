package produce

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// MermaidProducer renders placement prompts into diagram code embedded
// directly in the document. Fully deterministic and local: it never fails,
// which makes it the terminal fallback for technical placements.
type MermaidProducer struct{}

func NewMermaidProducer() *MermaidProducer { return &MermaidProducer{} }

func (m *MermaidProducer) Name() string { return "mermaid" }

func (m *MermaidProducer) Produce(_ context.Context, slot Slot) (Artifact, error) {
	diagramType := detectDiagramType(slot.Prompt, string(slot.Kind))

	var code string
	switch diagramType {
	case "sequence":
		code = renderSequence()
	case "state":
		code = renderState()
	case "mindmap":
		code = renderMindmap(slot.Prompt)
	default:
		code = renderFlowchart(slot.Prompt)
	}

	return Artifact{
		Inline:  code,
		Lang:    "mermaid",
		Source:  m.Name(),
		AltText: slot.Prompt,
	}, nil
}

// diagramTypeKeywords maps diagram types to the prompt vocabulary that
// selects them. Checked before the placement-kind mapping.
var diagramTypeKeywords = map[string][]string{
	"sequence": {"api", "接口", "请求", "响应", "调用", "request", "response", "sequence"},
	"state":    {"状态", "转换", "state", "status", "lifecycle"},
	"mindmap":  {"结构", "知识", "概念", "思维", "structure", "knowledge", "concept", "overview"},
}

// kindDiagramTypes maps placement kinds to a default diagram type when no
// keyword matches.
var kindDiagramTypes = map[string]string{
	"cover":        "mindmap",
	"section":      "flowchart",
	"concept":      "flowchart",
	"code_concept": "flowchart",
	"diagram":      "flowchart",
}

func detectDiagramType(prompt, kind string) string {
	lower := strings.ToLower(prompt)
	for _, diagramType := range []string{"sequence", "state", "mindmap"} {
		for _, kw := range diagramTypeKeywords[diagramType] {
			if strings.Contains(lower, kw) {
				return diagramType
			}
		}
	}
	if t, ok := kindDiagramTypes[kind]; ok {
		return t
	}
	return "flowchart"
}

var conditionWords = []string{"如果", "否则", "判断", "验证", "检查", "whether", "if ", "check", "validate"}

func renderFlowchart(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, w := range conditionWords {
		if strings.Contains(lower, w) {
			return renderDecisionFlowchart()
		}
	}

	steps := extractSteps(prompt)
	if len(steps) < 2 {
		steps = []string{"Start", strings.TrimSpace(prompt), "End"}
	}

	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	for i, step := range steps {
		id := rune('A' + i)
		fmt.Fprintf(&sb, "    %c[%q]\n", id, step)
		if i > 0 {
			fmt.Fprintf(&sb, "    %c --> %c\n", id-1, id)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderDecisionFlowchart() string {
	return strings.Join([]string{
		"flowchart TD",
		`    A["Start"]`,
		"    B{Condition?}",
		`    C["Continue"]`,
		`    D["Handle failure"]`,
		`    E["End"]`,
		"    A --> B",
		"    B -->|yes| C",
		"    B -->|no| D",
		"    C --> E",
		"    D --> E",
	}, "\n")
}

func renderSequence() string {
	return strings.Join([]string{
		"sequenceDiagram",
		"    participant User",
		"    participant Client",
		"    participant Server",
		"    User->>Client: request",
		"    Client->>Server: API call",
		"    Server-->>Client: response",
		"    Client-->>User: result",
	}, "\n")
}

func renderState() string {
	return strings.Join([]string{
		"stateDiagram-v2",
		"    [*] --> Pending",
		"    Pending --> Running",
		"    Running --> Done",
		"    Running --> Failed",
		"    Failed --> Pending",
		"    Done --> [*]",
	}, "\n")
}

func renderMindmap(prompt string) string {
	topic := strings.TrimSpace(prompt)
	if runes := []rune(topic); len(runes) > 24 {
		topic = string(runes[:24])
	}

	var sb strings.Builder
	sb.WriteString("mindmap\n")
	fmt.Fprintf(&sb, "  root((%s))\n", topic)
	branches := SearchKeywords(prompt, 4)
	if branches == "" {
		branches = "overview"
	}
	for _, b := range strings.Fields(branches) {
		fmt.Fprintf(&sb, "    %s\n", b)
	}
	return strings.TrimRight(sb.String(), "\n")
}

var stepSplitRe = regexp.MustCompile(`[。，,.;；]|then\s|next\s|finally\s|然后|接着|之后|最后`)

// extractSteps splits a prompt into at most 5 step labels.
func extractSteps(prompt string) []string {
	var steps []string
	for _, part := range stepSplitRe.Split(prompt, -1) {
		part = strings.TrimSpace(part)
		if len([]rune(part)) <= 2 {
			continue
		}
		steps = append(steps, part)
		if len(steps) == 5 {
			break
		}
	}
	return steps
}
