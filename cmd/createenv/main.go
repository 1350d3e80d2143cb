// Command createenv asks for block-alert's settings and writes them to a
// .env file.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/0xb10c/block-alert/src/config"
	"github.com/0xb10c/block-alert/src/xpub"
)

type options struct {
	Output string `long:"output" short:"o" default:".env" description:"File to write"`
}

const schemeTable = `+---------------------+------------------------------------------+
| Address type        | Format                                   |
+---------------------+------------------------------------------+
| P2WPKH              | xpub1                                    |
| P2SH-P2WPKH         | xpub1-[p2sh]                             |
| P2PKH               | xpub-[legacy]                            |
| Multi-sig P2WSH     | 2-of-xpub1-xpub2                         |
| Multi-sig P2SH-P2WSH| 2-of-xpub1-xpub2-[p2sh]                  |
| Multi-sig P2SH      | 2-of-xpub1-xpub2-[legacy]                |
| P2TR                | xpub1-[taproot]                          |
+---------------------+------------------------------------------+`

// balanceIntervals are the offered report intervals in milliseconds.
var balanceIntervals = []struct {
	label string
	ms    int64
}{
	{"Every hour", 3600000},
	{"Every 2 hours", 7200000},
	{"Every 4 hours", 14400000},
	{"Every 6 hours", 21600000},
	{"Every 8 hours", 28800000},
	{"Every 12 hours", 43200000},
	{"Once a day", 86400000},
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	env, err := newWizard(os.Stdin, os.Stdout).run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	content, err := write(env, opts.Output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s file has been created with the following content:\n%s\n", opts.Output, content)
}

type wizard struct {
	in  *bufio.Scanner
	out io.Writer
}

func newWizard(in io.Reader, out io.Writer) *wizard {
	return &wizard{in: bufio.NewScanner(in), out: out}
}

func (w *wizard) ask(question string) (string, error) {
	fmt.Fprintln(w.out, question)
	if !w.in.Scan() {
		if err := w.in.Err(); err != nil {
			return "", errors.Wrap(err, "reading input")
		}
		return "", errors.New("input ended before all settings were entered")
	}
	return strings.TrimSpace(w.in.Text()), nil
}

// askUntil repeats question until valid accepts the answer.
func (w *wizard) askUntil(question string, valid func(string) error) (string, error) {
	for {
		answer, err := w.ask(question)
		if err != nil {
			return "", err
		}
		if err := valid(answer); err != nil {
			fmt.Fprintln(w.out, err)
			continue
		}
		return answer, nil
	}
}

func (w *wizard) confirm(question string) (bool, error) {
	answer, err := w.ask(question + " (y/n)")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

// run collects every setting and returns them keyed by variable name.
func (w *wizard) run() (map[string]string, error) {
	env := map[string]string{
		"NBXPLORER_COOKIE_PATH": "",
		"NTFY_USER":             "",
		"NTFY_PASSWORD":         "",
	}

	var err error
	env["NBXPLORER_URL"], err = w.askUntil("What is the NBXplorer URL? (e.g., http://127.0.0.1:24444)",
		func(s string) error { return config.ValidateURL("NBXPLORER_URL", s) })
	if err != nil {
		return nil, err
	}

	withCookie, err := w.confirm("Do you want to configure NBXplorer authentication?")
	if err != nil {
		return nil, err
	}
	if withCookie {
		env["NBXPLORER_COOKIE_PATH"], err = w.ask("Enter the path to the NBXplorer cookie file:")
		if err != nil {
			return nil, err
		}
	}

	fmt.Fprintln(w.out, schemeTable)
	env["EXTENDED_PUBKEY"], err = w.askUntil("Please enter the extended public key based on the above formats.",
		func(s string) error {
			if _, err := xpub.ParseDerivationScheme(s); err != nil {
				return errors.Wrap(err, "Invalid extended public key format. Please enter a valid key")
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out, "How often would you like to receive balance reports?")
	for i, interval := range balanceIntervals {
		fmt.Fprintf(w.out, "%d) %s\n", i+1, interval.label)
	}
	choice, err := w.askUntil(fmt.Sprintf("Enter the number of your choice (1-%d):", len(balanceIntervals)),
		func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > len(balanceIntervals) {
				return errors.Errorf("Invalid choice. Please enter a number between 1 and %d.", len(balanceIntervals))
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	n, _ := strconv.Atoi(choice)
	env["BALANCE_REPORT_INTERVAL_MS"] = strconv.FormatInt(balanceIntervals[n-1].ms, 10)

	env["NTFY_URL"], err = w.askUntil("What is the Ntfy server URL? (e.g., http://127.0.0.1:80)",
		func(s string) error { return config.ValidateURL("NTFY_URL", s) })
	if err != nil {
		return nil, err
	}

	withNtfyAuth, err := w.confirm("Do you want to configure Ntfy authentication?")
	if err != nil {
		return nil, err
	}
	if withNtfyAuth {
		if env["NTFY_USER"], err = w.ask("Enter Ntfy username:"); err != nil {
			return nil, err
		}
		if env["NTFY_PASSWORD"], err = w.ask("Enter Ntfy password:"); err != nil {
			return nil, err
		}
	}

	env["NTFY_TOPIC"], err = w.askUntil("What is the Ntfy topic?", func(s string) error {
		if s == "" {
			return errors.New("Ntfy topic cannot be empty. Please enter a valid topic.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// write stores env at path, readable by the owner only.
func write(env map[string]string, path string) (string, error) {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return "", errors.Wrap(err, "could not encode settings")
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return "", errors.Wrapf(err, "could not write %s", path)
	}
	return content, nil
}
