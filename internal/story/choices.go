package story

import (
	"context"
	"errors"
	"fmt"
)

// ChoiceItem is one rendered choice. Number is 1-based.
type ChoiceItem struct {
	Number      int    `json:"number"`
	ID          string `json:"choice_id"`
	Text        string `json:"choice_text"`
	Consequence string `json:"consequence,omitempty"`
}

// ChoiceView is what a front end needs to draw the choice list.
type ChoiceView struct {
	Items    []ChoiceItem `json:"items"`
	Loading  bool         `json:"loading"`
	Disabled bool         `json:"disabled"`
	Empty    bool         `json:"empty"`
}

// ChoicePanel presents the holder's current choices and relays selections.
type ChoicePanel struct {
	holder *Holder
}

func NewChoicePanel(h *Holder) *ChoicePanel {
	return &ChoicePanel{holder: h}
}

// View builds the panel from the holder's current snapshot.
func (p *ChoicePanel) View() ChoiceView {
	return viewOf(p.holder.Snapshot())
}

func viewOf(snap Snapshot) ChoiceView {
	view := ChoiceView{
		Items:    []ChoiceItem{},
		Loading:  snap.Loading(),
		Disabled: snap.Loading() || snap.State == StateIdle,
	}
	if snap.Segment != nil {
		for i, c := range snap.Segment.Choices {
			view.Items = append(view.Items, ChoiceItem{
				Number:      i + 1,
				ID:          c.ID,
				Text:        c.Text,
				Consequence: c.Consequence,
			})
		}
	}
	view.Empty = !view.Loading && len(view.Items) == 0
	return view
}

// Select relays a choice to the holder. It does nothing while the panel is disabled.
func (p *ChoicePanel) Select(ctx context.Context, choiceID string) error {
	if p.View().Disabled {
		return nil
	}
	err := p.holder.Choose(ctx, choiceID)
	if errors.Is(err, ErrBusy) {
		return nil
	}
	return err
}

// SelectNumber selects the n-th rendered choice.
func (p *ChoicePanel) SelectNumber(ctx context.Context, n int) error {
	view := p.View()
	if view.Disabled {
		return nil
	}
	if n < 1 || n > len(view.Items) {
		return fmt.Errorf("%w: no choice %d", ErrUnknownChoice, n)
	}
	return p.Select(ctx, view.Items[n-1].ID)
}
