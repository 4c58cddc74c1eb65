package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

// consoleSurface renders the conversation as numbered terminal
// choices. Render calls only collect; interact runs the prompt loop
// after a dispatch round finished.
type consoleSurface struct {
	in  *bufio.Reader
	out io.Writer

	forms    []*ui.Form
	triggers []*ui.Trigger
	done     bool
}

func newConsoleSurface(in io.Reader, out io.Writer) *consoleSurface {
	return &consoleSurface{in: bufio.NewReader(in), out: out}
}

func (s *consoleSurface) ShowForm(f *ui.Form) {
	s.forms = append(s.forms, f)
}

func (s *consoleSurface) ShowTrigger(tr *ui.Trigger) {
	s.triggers = append(s.triggers, tr)
}

func (s *consoleSurface) ShowSeparator(sep *ui.Separator) {
	if sep.Label != "" {
		fmt.Fprintf(s.out, "--- %s ---\n", sep.Label)
	}
}

func (s *consoleSurface) ShowNotice(n *ui.Notice) {
	fmt.Fprintf(s.out, "[%s] %s\n", n.Style, n.Text)
}

func (s *consoleSurface) ShowQr(qr *ui.QrCode) {
	fmt.Fprintf(s.out, "scan to sign in: %s\n", qr.URL)
}

func (s *consoleSurface) ShowError(text string) {
	fmt.Fprintf(s.out, "error: %s\n", text)
}

func (s *consoleSurface) Navigate(url string) {
	fmt.Fprintf(s.out, "open in your browser: %s\n", url)
}

// interact prompts until a flow callback marks the conversation done
// or the user quits.
func (s *consoleSurface) interact(ctx context.Context) error {
	for !s.done {
		forms, triggers := s.forms, s.triggers
		s.forms, s.triggers = nil, nil

		if len(forms)+len(triggers) == 0 {
			return nil
		}

		fmt.Fprintln(s.out)
		i := 1
		for _, f := range forms {
			fmt.Fprintf(s.out, "%2d) fill in %s\n", i, f.ID)
			i++
		}
		for _, tr := range triggers {
			fmt.Fprintf(s.out, "%2d) %s\n", i, tr.Label)
			i++
		}
		fmt.Fprint(s.out, "choice (q to quit): ")

		line, err := s.in.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "q" {
			return nil
		}
		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(forms)+len(triggers) {
			fmt.Fprintln(s.out, "no such option")
			s.forms, s.triggers = forms, triggers
			continue
		}

		if choice <= len(forms) {
			if err := s.fillForm(ctx, forms[choice-1]); err != nil {
				fmt.Fprintf(s.out, "failed: %v\n", err)
			}
			continue
		}
		if err := triggers[choice-len(forms)-1].Activate(ctx); err != nil {
			fmt.Fprintf(s.out, "failed: %v\n", err)
		}
	}
	return nil
}

func (s *consoleSurface) fillForm(ctx context.Context, f *ui.Form) error {
	values := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		label := field.Label
		if label == "" {
			label = field.ID
		}
		fmt.Fprintf(s.out, "%s: ", label)
		line, err := s.in.ReadString('\n')
		if err != nil {
			return err
		}
		values[field.ID] = strings.TrimSpace(line)
	}
	return f.Submit(ctx, values)
}
