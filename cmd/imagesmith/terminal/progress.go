package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/chis/imagesmith/internal/events"
)

// Follow prints variant and sweep progress from bus to w until the returned
// stop function is called. stop waits for buffered events to be printed.
func Follow(bus *events.Bus, w io.Writer) (stop func()) {
	ch, unsubscribe := bus.Subscribe(events.Wildcard)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range ch {
			if line := Describe(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			wg.Wait()
		})
	}
}

// Describe renders one event as a progress line, or "" for events that are
// not shown.
func Describe(ev events.Event) string {
	ns := ev.Str(events.KeyNamespace)
	variant := ev.Str(events.KeyVariant)
	name := variant
	if ns != "" {
		name = ns + "/" + variant
	}

	switch ev.Type {
	case events.EventNamespaceStarted:
		return Bold("==> " + ns)
	case events.EventVariantStarted:
		return fmt.Sprintf("%s %s", Gray("-->"), name)
	case events.EventVariantState:
		state := ev.Str(events.KeyState)
		switch state {
		case "building", "pushing":
			return fmt.Sprintf("    %s %s", Gray(state), name)
		}
		return ""
	case events.EventVariantFinished:
		line := fmt.Sprintf("    %s %s", Status(ev.Str(events.KeyStatus)), name)
		if e := ev.Str(events.KeyError); e != "" {
			line += ": " + Red(e)
		}
		return line
	case events.EventSweepTag:
		line := fmt.Sprintf("    %s %s", Status(ev.Str(events.KeyStatus)), ev.Str(events.KeyTag))
		if e := ev.Str(events.KeyError); e != "" {
			line += ": " + Red(e)
		}
		return line
	}
	return ""
}
