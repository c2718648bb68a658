package classify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/llm"
)

// Result is the outcome of classifying one document.
type Result struct {
	Category   document.Category `json:"category"`
	Confidence float64           `json:"confidence"`
	Scores     map[string]int    `json:"scores"`
	Reason     string            `json:"reason"`
	Method     string            `json:"method"`
}

// Indicator vocabularies. Counts are substring occurrences over the
// lowercased document text, matching both Chinese and English terms.
var techKeywords = []string{
	"代码", "编程", "函数", "算法", "数据结构", "架构", "api",
	"框架", "库", "模块", "类", "对象", "变量", "方法",
	"数据库", "服务器", "客户端", "前端", "后端", "全栈",
	"部署", "配置", "环境", "依赖", "安装",
	"code", "function", "algorithm", "data structure",
	"framework", "library", "module", "class", "object", "variable",
	"database", "server", "client", "frontend", "backend", "fullstack",
	"deploy", "config", "environment", "dependency", "install",
	"git", "commit", "push", "pull", "clone", "branch", "merge",
	"http", "https", "url", "endpoint", "request", "response",
	"json", "xml", "html", "css", "javascript", "python", "java",
	"react", "vue", "angular", "node", "express", "django", "flask",
	"docker", "kubernetes", "linux", "ubuntu", "windows", "mac",
}

var processKeywords = []string{
	"流程", "步骤", "阶段", "过程", "循环", "判断", "条件",
	"输入", "输出", "开始", "结束", "返回", "调用",
	"flow", "process", "step", "stage", "loop", "condition",
	"input", "output", "start", "end", "return", "call",
}

// Score caps per indicator bucket. Total is out of 100.
const (
	codeBlockWeight = 20
	codeBlockCap    = 40
	techWeight      = 2
	techCap         = 30
	processCap      = 20
	structureWeight = 2
	structureCap    = 10

	technicalThreshold  = 30
	escalationThreshold = 0.8
)

// Classifier labels documents as technical or normal. An optional
// inference collaborator refines low-confidence rule results; its absence
// or failure never surfaces as an error.
type Classifier struct {
	inferencer llm.Inferencer
}

func New(inferencer llm.Inferencer) *Classifier {
	return &Classifier{inferencer: inferencer}
}

// Classify scores the document against the weighted indicators. When the
// rule-based confidence falls below the escalation threshold and an
// inference collaborator is available, its category wins.
func (c *Classifier) Classify(ctx context.Context, doc *document.Document) Result {
	result := ruleClassify(doc)

	if result.Confidence < escalationThreshold && c.inferencer != nil {
		if refined, ok := c.inferClassify(ctx, doc, result); ok {
			return refined
		}
	}
	return result
}

func ruleClassify(doc *document.Document) Result {
	var content strings.Builder
	codeBlocks := 0
	levelsSeen := map[int]bool{}
	for _, el := range doc.Elements {
		content.WriteString(el.Text)
		content.WriteString("\n")
		switch el.Kind {
		case document.KindCodeBlock:
			codeBlocks++
		case document.KindHeading:
			levelsSeen[el.Level] = true
		}
	}
	lower := strings.ToLower(content.String())

	techHits := 0
	for _, kw := range techKeywords {
		techHits += strings.Count(lower, kw)
	}
	processHits := 0
	for _, kw := range processKeywords {
		processHits += strings.Count(lower, kw)
	}

	scores := map[string]int{
		"code_blocks": capped(codeBlocks*codeBlockWeight, codeBlockCap),
		"tech_vocab":  capped(techHits*techWeight, techCap),
		"process":     capped(processHits, processCap),
		"structure":   capped(len(levelsSeen)*structureWeight, structureCap),
	}
	total := scores["code_blocks"] + scores["tech_vocab"] + scores["process"] + scores["structure"]

	if total >= technicalThreshold {
		return Result{
			Category:   document.CategoryTechnical,
			Confidence: clamp01(float64(total) / 100),
			Scores:     scores,
			Reason:     fmt.Sprintf("indicator score %d >= %d", total, technicalThreshold),
			Method:     "rules",
		}
	}
	return Result{
		Category:   document.CategoryNormal,
		Confidence: clamp01(float64(100-total) / 100),
		Scores:     scores,
		Reason:     fmt.Sprintf("indicator score %d < %d", total, technicalThreshold),
		Method:     "rules",
	}
}

// inferClassify asks the collaborator to settle a low-confidence rule
// result. The second return is false when the call failed and the rule
// result should stand.
func (c *Classifier) inferClassify(ctx context.Context, doc *document.Document, rule Result) (Result, bool) {
	preview := documentPreview(doc, 500)
	resp, err := c.inferencer.Infer(ctx, llm.Request{
		Task: llm.TaskClassify,
		Text: preview,
		Context: map[string]string{
			"title":    doc.Title,
			"keywords": strings.Join(doc.Keywords, ", "),
		},
	})
	if err != nil {
		return Result{}, false
	}

	answer := strings.ToLower(resp.Result)
	category := document.CategoryNormal
	if strings.Contains(answer, "technical") || strings.Contains(answer, "技术") {
		category = document.CategoryTechnical
	}
	confidence := resp.Confidence
	if confidence <= 0 {
		confidence = escalationThreshold
	}
	return Result{
		Category:   category,
		Confidence: confidence,
		Scores:     rule.Scores,
		Reason:     "inference: " + truncateReason(resp.Result, 120),
		Method:     "inference",
	}, true
}

// documentPreview joins element text up to roughly maxRunes runes.
func documentPreview(doc *document.Document, maxRunes int) string {
	var sb strings.Builder
	for _, el := range doc.Elements {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(el.Text)
		if sb.Len() >= maxRunes*4 {
			break
		}
	}
	runes := []rune(sb.String())
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return sb.String()
}

func capped(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateReason(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// ScoreSummary renders the breakdown for logs and reports.
func (r Result) ScoreSummary() string {
	total := 0
	for _, v := range r.Scores {
		total += v
	}
	return string(r.Category) + " (" + strconv.Itoa(total) + "/100)"
}
