package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Click clicks an element by snapshot ref.
func (m *Manager) Click(ctx context.Context, targetID, ref string, opts ClickOpts) error {
	_, el, err := m.pageAndElement(targetID, ref)
	if err != nil {
		return err
	}

	button := proto.InputMouseButtonLeft
	switch opts.Button {
	case "right":
		button = proto.InputMouseButtonRight
	case "middle":
		button = proto.InputMouseButtonMiddle
	}

	clicks := 1
	if opts.DoubleClick {
		clicks = 2
	}
	return el.Click(button, clicks)
}

// Type focuses an element by ref and types text into it.
func (m *Manager) Type(ctx context.Context, targetID, ref, text string, opts TypeOpts) error {
	page, el, err := m.pageAndElement(targetID, ref)
	if err != nil {
		return err
	}

	// Focus the element first
	_ = el.Click(proto.InputMouseButtonLeft, 1)
	time.Sleep(50 * time.Millisecond)

	if opts.Slowly {
		for _, ch := range text {
			if err := el.Input(string(ch)); err != nil {
				return fmt.Errorf("type: %w", err)
			}
			time.Sleep(50 * time.Millisecond)
		}
	} else {
		if err := el.Input(text); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}

	if opts.Submit {
		time.Sleep(50 * time.Millisecond)
		return page.Keyboard.Press(input.Enter)
	}
	return nil
}

// Press presses a keyboard key on a tab.
func (m *Manager) Press(ctx context.Context, targetID, key string) error {
	page, err := m.page(targetID)
	if err != nil {
		return err
	}
	return page.Keyboard.Press(mapKey(key))
}

// Wait waits for a condition on a tab: a fixed time, text to appear, or
// the page to stabilize when no condition is given.
func (m *Manager) Wait(ctx context.Context, targetID string, opts WaitOpts) error {
	page, err := m.page(targetID)
	if err != nil {
		return err
	}

	if opts.TimeMs > 0 {
		select {
		case <-time.After(time.Duration(opts.TimeMs) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if opts.Text != "" {
		return rod.Try(func() {
			page.Timeout(30 * time.Second).MustElementR("*", opts.Text)
		})
	}

	return page.WaitStable(300 * time.Millisecond)
}

// Evaluate runs JavaScript on a tab and returns its string value.
func (m *Manager) Evaluate(ctx context.Context, targetID, js string) (string, error) {
	page, err := m.page(targetID)
	if err != nil {
		return "", err
	}

	result, err := page.Eval(js)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return result.Value.String(), nil
}

// mapKey converts a key name to a Rod keyboard key.
func mapKey(key string) input.Key {
	switch key {
	case "Enter":
		return input.Enter
	case "Tab":
		return input.Tab
	case "Escape":
		return input.Escape
	case "Backspace":
		return input.Backspace
	case "Delete":
		return input.Delete
	case "ArrowUp":
		return input.ArrowUp
	case "ArrowDown":
		return input.ArrowDown
	case "ArrowLeft":
		return input.ArrowLeft
	case "ArrowRight":
		return input.ArrowRight
	case "Home":
		return input.Home
	case "End":
		return input.End
	case "PageUp":
		return input.PageUp
	case "PageDown":
		return input.PageDown
	case "Space":
		return input.Space
	default:
		if len(key) == 1 {
			return input.Key(key[0])
		}
		return input.Enter
	}
}
