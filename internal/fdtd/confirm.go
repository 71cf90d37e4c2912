package fdtd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// ConfirmFunc decides whether an existing artifact may be overwritten.
type ConfirmFunc func(ctx context.Context, artifact string) (bool, error)

// AlwaysConfirm allows every overwrite.
func AlwaysConfirm(context.Context, string) (bool, error) { return true, nil }

// NeverConfirm refuses every overwrite.
func NeverConfirm(context.Context, string) (bool, error) { return false, nil }

// PromptConfirm asks on out and reads answers from in until it gets "y" or
// "n". End of input counts as "n".
func PromptConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	scanner := bufio.NewScanner(in)
	return func(ctx context.Context, artifact string) (bool, error) {
		fmt.Fprintf(out, "Attention: simulation file %s already exists.\n", artifact)
		for {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			fmt.Fprint(out, "Do you want to continue? (y/n): ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return false, fmt.Errorf("read answer: %w", err)
				}
				fmt.Fprintln(out)
				return false, nil
			}
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "y":
				return true, nil
			case "n":
				fmt.Fprintln(out, "Stopping...")
				return false, nil
			default:
				fmt.Fprintln(out, "Please enter 'y' or 'n'.")
			}
		}
	}
}
