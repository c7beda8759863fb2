package diag

import (
	"errors"
	"strings"

	"github.com/fatih/color"
)

var (
	headerColor = []color.Attribute{color.FgRed, color.Bold}
	helpColor   = []color.Attribute{color.FgGreen, color.Bold}
	noteColor   = []color.Attribute{color.FgCyan, color.Bold}
)

// Format renders err as a multi-line diagnostic with help and note lines
func Format(err error, useColor bool) string {
	if err == nil {
		return ""
	}

	paint := func(attrs []color.Attribute, s string) string {
		if !useColor {
			return s
		}
		c := color.New(attrs...)
		c.EnableColor()
		return c.Sprint(s)
	}

	var sb strings.Builder
	sb.WriteString(paint(headerColor, "error["+CategoryOf(err).String()+"]: "))

	var (
		enc   *EncodingError
		unres *UnresolvedSymbolError
		frame *FrameOverflowError
		size  *ContainerSizeExceededError
		ioErr *IOError
	)
	switch {
	case errors.As(err, &unres):
		if len(unres.Refs) == 1 {
			sb.WriteString("undefined function '" + unres.Refs[0].Symbol + "'\n")
		} else {
			sb.WriteString("unresolved symbols\n")
			for _, r := range unres.Refs {
				sb.WriteString("  --> " + r.Error() + "\n")
			}
		}
		for _, r := range unres.Refs {
			if len(r.Suggestions) > 0 {
				sb.WriteString(paint(helpColor, "   help: "))
				sb.WriteString("did you mean " + quoteList(r.Suggestions) + " instead of '" + r.Symbol + "'?\n")
			}
		}
	case errors.As(err, &enc):
		sb.WriteString(enc.Error() + "\n")
		if enc.Suggestion != "" {
			sb.WriteString(paint(helpColor, "   help: "))
			sb.WriteString(enc.Suggestion + "\n")
		}
	case errors.As(err, &frame):
		sb.WriteString(frame.Error() + "\n")
		sb.WriteString(paint(noteColor, "   note: "))
		sb.WriteString("split the function or raise the frame limit\n")
	case errors.As(err, &size):
		sb.WriteString(size.Error() + "\n")
		sb.WriteString(paint(noteColor, "   note: "))
		sb.WriteString("enable optimization or choose a larger target\n")
	case errors.As(err, &ioErr):
		sb.WriteString(ioErr.Error() + "\n")
	default:
		sb.WriteString(err.Error() + "\n")
	}
	return sb.String()
}
