package compareclient

import "strings"

// ModelView is the locally accumulated state of one model in a run
type ModelView struct {
	ModelID         string
	Status          string
	Content         string
	Reasoning       string
	Error           string
	Usage           *Usage
	InferenceTimeMs *int64

	content   strings.Builder
	reasoning strings.Builder
}

// Tracker folds a run's event stream into per-model views so a UI can render
// side-by-side columns without interpreting raw events itself.
type Tracker struct {
	RunID  string
	ChatID string
	Done   bool

	order  []string
	models map[string]*ModelView
}

// NewTracker creates an empty tracker. It learns the run's models from the
// run_start event.
func NewTracker() *Tracker {
	return &Tracker{models: make(map[string]*ModelView)}
}

func (t *Tracker) model(modelID string) *ModelView {
	view, ok := t.models[modelID]
	if !ok {
		view = &ModelView{ModelID: modelID, Status: "pending"}
		t.models[modelID] = view
		t.order = append(t.order, modelID)
	}
	return view
}

// Apply folds one event into the tracker
func (t *Tracker) Apply(ev *Event) {
	switch ev.Type {
	case EventRunStart:
		t.RunID = ev.RunID
		t.ChatID = ev.ChatID
		for _, modelID := range ev.Models {
			t.model(modelID)
		}
	case EventModelStart:
		t.model(ev.ModelID).Status = "running"
	case EventDelta:
		view := t.model(ev.ModelID)
		view.content.WriteString(ev.TextDelta)
		view.Content = view.content.String()
	case EventReasoningDelta:
		view := t.model(ev.ModelID)
		view.reasoning.WriteString(ev.ReasoningDelta)
		view.Reasoning = view.reasoning.String()
	case EventModelEnd:
		view := t.model(ev.ModelID)
		view.Status = "completed"
		view.Usage = ev.Usage
		view.InferenceTimeMs = ev.InferenceTimeMs
	case EventModelError:
		view := t.model(ev.ModelID)
		view.Status = "failed"
		view.Error = ev.Error
	case EventRunEnd:
		t.Done = true
	}
}

// ApplyDetail overwrites the tracker from a durable run read. Used after a
// dropped stream, where the persisted state supersedes whatever deltas arrived.
func (t *Tracker) ApplyDetail(detail *RunDetail) {
	t.RunID = detail.Run.ID
	t.ChatID = detail.Run.ChatID
	t.Done = detail.Run.Status != "running"

	for _, res := range detail.Results {
		view := t.model(res.ModelID)
		view.Status = res.Status
		view.Error = res.Error
		view.InferenceTimeMs = res.InferenceTimeMs
		view.content.Reset()
		view.content.WriteString(res.Content)
		view.Content = res.Content
		view.reasoning.Reset()
		view.reasoning.WriteString(res.Reasoning)
		view.Reasoning = res.Reasoning
		if res.TotalTokens != nil {
			usage := &Usage{TotalTokens: *res.TotalTokens}
			if res.PromptTokens != nil {
				usage.PromptTokens = *res.PromptTokens
			}
			if res.CompletionTokens != nil {
				usage.CompletionTokens = *res.CompletionTokens
			}
			view.Usage = usage
		}
	}
}

// Models returns the per-model views in run order
func (t *Tracker) Models() []*ModelView {
	views := make([]*ModelView, 0, len(t.order))
	for _, modelID := range t.order {
		views = append(views, t.models[modelID])
	}
	return views
}
