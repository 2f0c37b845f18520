package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultModel is the model the llm-engine node uses when none is set.
const DefaultModel = "gemini-2.5-flash"

// DefaultTemperature is the sampling temperature used when none is set.
const DefaultTemperature = 0.7

// NodeData is the kind-specific configuration carried by a node. Each
// built-in kind has its own struct; unrecognised keys are kept in Extra and
// written back unchanged.
type NodeData interface {
	Kind() Kind
	Title() string
	Copy() NodeData
}

// QueryIntakeData configures the user-query entry node.
type QueryIntakeData struct {
	Label string         `json:"label,omitempty"`
	Extra map[string]any `json:"-"`
}

func (d *QueryIntakeData) Kind() Kind     { return KindQueryIntake }
func (d *QueryIntakeData) Title() string  { return d.Label }
func (d *QueryIntakeData) Copy() NodeData { c := *d; c.Extra = copyMap(d.Extra); return &c }

var queryIntakeKeys = []string{"label"}

func (d *QueryIntakeData) MarshalJSON() ([]byte, error) {
	type alias QueryIntakeData
	return marshalWithExtra((*alias)(d), d.Extra)
}

func (d *QueryIntakeData) UnmarshalJSON(b []byte) error {
	type alias QueryIntakeData
	extra, err := unmarshalWithExtra(b, (*alias)(d), queryIntakeKeys)
	d.Extra = extra
	return err
}

// KnowledgeBaseData configures a document-retrieval node. DocumentID,
// Filename and CollectionName are filled from an upload response.
type KnowledgeBaseData struct {
	Label          string         `json:"label,omitempty"`
	APIKey         string         `json:"apiKey,omitempty"`
	EmbeddingModel string         `json:"embeddingModel,omitempty"`
	DocumentID     int64          `json:"documentId,omitempty"`
	Filename       string         `json:"filename,omitempty"`
	CollectionName string         `json:"collectionName,omitempty"`
	Extra          map[string]any `json:"-"`
}

func (d *KnowledgeBaseData) Kind() Kind     { return KindKnowledgeBase }
func (d *KnowledgeBaseData) Title() string  { return d.Label }
func (d *KnowledgeBaseData) Copy() NodeData { c := *d; c.Extra = copyMap(d.Extra); return &c }

var knowledgeBaseKeys = []string{"label", "apiKey", "embeddingModel", "documentId", "filename", "collectionName"}

func (d *KnowledgeBaseData) MarshalJSON() ([]byte, error) {
	type alias KnowledgeBaseData
	return marshalWithExtra((*alias)(d), d.Extra)
}

func (d *KnowledgeBaseData) UnmarshalJSON(b []byte) error {
	type alias KnowledgeBaseData
	extra, err := unmarshalWithExtra(b, (*alias)(d), knowledgeBaseKeys)
	d.Extra = extra
	return err
}

// LLMEngineData configures the language-model node.
type LLMEngineData struct {
	Label           string         `json:"label,omitempty"`
	APIKey          string         `json:"apiKey,omitempty"`
	Model           string         `json:"model,omitempty"`
	Prompt          string         `json:"prompt,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	EnableWebSearch bool           `json:"enableWebSearch,omitempty"`
	SerpAPIKey      string         `json:"serpApiKey,omitempty"`
	Extra           map[string]any `json:"-"`
}

func (d *LLMEngineData) Kind() Kind    { return KindLLMEngine }
func (d *LLMEngineData) Title() string { return d.Label }

func (d *LLMEngineData) Copy() NodeData {
	c := *d
	if d.Temperature != nil {
		t := *d.Temperature
		c.Temperature = &t
	}
	c.Extra = copyMap(d.Extra)
	return &c
}

// EffectiveModel returns Model or DefaultModel.
func (d *LLMEngineData) EffectiveModel() string {
	if d.Model == "" {
		return DefaultModel
	}
	return d.Model
}

// EffectiveTemperature returns Temperature or DefaultTemperature.
func (d *LLMEngineData) EffectiveTemperature() float64 {
	if d.Temperature == nil {
		return DefaultTemperature
	}
	return *d.Temperature
}

var llmEngineKeys = []string{"label", "apiKey", "model", "prompt", "temperature", "enableWebSearch", "serpApiKey"}

func (d *LLMEngineData) MarshalJSON() ([]byte, error) {
	type alias LLMEngineData
	return marshalWithExtra((*alias)(d), d.Extra)
}

func (d *LLMEngineData) UnmarshalJSON(b []byte) error {
	type alias LLMEngineData
	extra, err := unmarshalWithExtra(b, (*alias)(d), llmEngineKeys)
	d.Extra = extra
	return err
}

// OutputData configures the output node.
type OutputData struct {
	Label string         `json:"label,omitempty"`
	Extra map[string]any `json:"-"`
}

func (d *OutputData) Kind() Kind     { return KindOutput }
func (d *OutputData) Title() string  { return d.Label }
func (d *OutputData) Copy() NodeData { c := *d; c.Extra = copyMap(d.Extra); return &c }

var outputKeys = []string{"label"}

func (d *OutputData) MarshalJSON() ([]byte, error) {
	type alias OutputData
	return marshalWithExtra((*alias)(d), d.Extra)
}

func (d *OutputData) UnmarshalJSON(b []byte) error {
	type alias OutputData
	extra, err := unmarshalWithExtra(b, (*alias)(d), outputKeys)
	d.Extra = extra
	return err
}

// RawData holds data for kinds this build does not know about. It is kept
// verbatim so a definition written by a newer editor survives a round trip.
type RawData struct {
	NodeKind Kind
	Fields   map[string]any
}

func (d *RawData) Kind() Kind { return d.NodeKind }

func (d *RawData) Title() string {
	if s, ok := d.Fields["label"].(string); ok {
		return s
	}
	return ""
}

func (d *RawData) Copy() NodeData {
	return &RawData{NodeKind: d.NodeKind, Fields: copyMap(d.Fields)}
}

func (d *RawData) MarshalJSON() ([]byte, error) {
	if d.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Fields)
}

// decodeData picks the variant for kind and decodes raw into it.
func decodeData(reg *Registry, kind Kind, raw json.RawMessage) (NodeData, error) {
	spec, ok := reg.Lookup(kind)
	if !ok {
		fields := map[string]any{}
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("decode %s data: %w", kind, err)
			}
		}
		return &RawData{NodeKind: kind, Fields: fields}, nil
	}

	data := spec.NewData()
	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}
	// Decoding on top of the defaults would invent fields the stored node
	// never had, so start from the zero value of the variant.
	data = zeroOf(data)
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", kind, err)
	}
	return data, nil
}

func zeroOf(d NodeData) NodeData {
	switch d.(type) {
	case *QueryIntakeData:
		return &QueryIntakeData{}
	case *KnowledgeBaseData:
		return &KnowledgeBaseData{}
	case *LLMEngineData:
		return &LLMEngineData{}
	case *OutputData:
		return &OutputData{}
	}
	return d
}

func marshalWithExtra(known any, extra map[string]any) ([]byte, error) {
	b, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return b, err
	}

	var merged map[string]any
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func unmarshalWithExtra(b []byte, known any, keys []string) (map[string]any, error) {
	if err := json.Unmarshal(b, known); err != nil {
		return nil, err
	}

	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for _, k := range keys {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}

var validate = validator.New()

func checkLLMEngine(data NodeData) []string {
	d, ok := data.(*LLMEngineData)
	if !ok {
		return nil
	}

	var warnings []string
	if err := validate.Struct(d); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				if fe.Field() == "Temperature" {
					warnings = append(warnings, "temperature must be between 0 and 1")
				} else {
					warnings = append(warnings, fmt.Sprintf("invalid %s", strings.ToLower(fe.Field())))
				}
			}
		}
	}
	if d.EnableWebSearch && d.SerpAPIKey == "" {
		warnings = append(warnings, "web search is enabled but no SerpAPI key is set on the node")
	}
	return warnings
}

func checkKnowledgeBase(data NodeData) []string {
	d, ok := data.(*KnowledgeBaseData)
	if !ok {
		return nil
	}
	if d.CollectionName == "" {
		return []string{"no document uploaded; retrieval will be skipped"}
	}
	return nil
}
