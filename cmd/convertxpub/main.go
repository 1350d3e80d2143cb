// Command convertxpub converts ypub, zpub, upub and vpub keys into the xpub
// and tpub encodings NBXplorer accepts.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/0xb10c/block-alert/src/xpub"
)

func main() {
	if err := prompt(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// prompt asks for a key until one converts.
func prompt(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintln(out, "Please enter the extended public key:")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "reading input")
			}
			return errors.New("no valid extended public key entered")
		}

		converted, err := xpub.Convert(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintln(out, err)
			fmt.Fprintln(out, "Invalid extended public key format. Please enter a valid key.")
			continue
		}

		fmt.Fprintf(out, "Converted extended public key: %s\n", converted)
		return nil
	}
}
