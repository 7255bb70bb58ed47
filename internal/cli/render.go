package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	OneQuestionPerScreen bool
	Outline              bool
	Width                int
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <payload.json>",
		Short: "Render a server payload as a form",
		Long: `Build the live form tree for a server payload and print it.

Text output renders the form as a terminal document. --outline prints one
line per node instead, and --format json prints the tree snapshot.

Use "-" to read the payload from stdin.

Examples:
  formentry render visit.json
  formentry render visit.json --outline
  formentry render visit.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.OneQuestionPerScreen, "one-question-per-screen", false, "force one-question-per-screen mode")
	cmd.Flags().BoolVar(&opts.Outline, "outline", false, "print a one-line-per-node outline")
	cmd.Flags().IntVar(&opts.Width, "width", 80, "wrap width for text output")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	payload, err := LoadPayload(path, cmd.InOrStdin())
	if err != nil {
		return formatter.LoadFailure(err)
	}

	resp := payload.Response
	if opts.OneQuestionPerScreen {
		resp.DisplayOptions = &wire.DisplayOptions{OneQuestionPerScreen: true}
	}

	form, protoErrs := tree.New(resp, tree.WithCaptioner(render.NewHTML()))
	for _, pe := range protoErrs {
		formatter.VerboseLog("protocol error: %v", pe)
	}

	switch {
	case opts.Format == "json":
		return formatter.Success(tree.Snap(form))
	case opts.Outline:
		return tree.Dump(cmd.OutOrStdout(), form)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), render.Terminal(FormMarkdown(form), opts.Width))
		return nil
	}
}

// FormMarkdown renders a form as a markdown document: groups become
// headings and questions become list items.
func FormMarkdown(f *tree.Form) string {
	var b strings.Builder
	title := f.Title()
	if title == "" {
		title = "Form"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if f.OneQuestionPerScreen() {
		fmt.Fprintf(&b, "_One question per screen, at index %s._\n\n", f.CurrentIndex())
	}
	writeNodes(&b, f.Children(), 2)
	if f.ShowRequiredNotice() {
		b.WriteString("\n_Fields marked * are required._\n")
	}
	return b.String()
}

func writeNodes(b *strings.Builder, nodes []tree.Node, depth int) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *tree.Question:
			writeQuestion(b, v)
		case *tree.TileRow:
			writeNodes(b, v.Children(), depth)
		case tree.Container:
			heading := plainCaption(n)
			if g, ok := n.(*tree.Group); ok && !g.ShowHeader() {
				heading = ""
			}
			if heading != "" {
				b.WriteString("\n")
				fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", min(depth, 6)), heading)
			}
			writeNodes(b, v.Children(), depth+1)
		}
	}
}

func writeQuestion(b *strings.Builder, q *tree.Question) {
	caption := plainCaption(q)
	if q.IsLabel() {
		fmt.Fprintf(b, "> %s\n\n", caption)
		return
	}

	fmt.Fprintf(b, "- **%s**", caption)
	if q.Required() {
		b.WriteString(" *")
	}
	if answer := q.Answer(); answer != nil {
		fmt.Fprintf(b, ": %s", formatValue(answer))
	} else {
		b.WriteString(": _unanswered_")
	}
	b.WriteString("\n")
	for _, choice := range q.Choices() {
		fmt.Fprintf(b, "  - %s\n", formatValue(choice))
	}
	if msg := q.ServerError(); msg != "" {
		fmt.Fprintf(b, "  - error: %s\n", msg)
	} else if msg := q.Error(); msg != "" {
		fmt.Fprintf(b, "  - error: %s\n", msg)
	}
}

func plainCaption(n tree.Node) string {
	if md := n.CaptionMarkdown(); md != "" {
		return render.PlainText(md)
	}
	return render.PlainText(n.Caption())
}
