// Command client talks to a running market-data server: add or delete
// tickers, run as-of data queries, and trigger report regeneration, either
// as one-shot subcommands or through an interactive prompt.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var serverAddressPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d{1,5}$`)

type client struct {
	base string
	http *http.Client
}

func newClient(addr string) (*client, error) {
	if !serverAddressPattern.MatchString(addr) {
		return nil, fmt.Errorf("invalid server address %q, expected IP:PORT", addr)
	}
	return &client{
		base: "http://" + addr,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) do(method, path string) (int, string, error) {
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

func (c *client) add(ticker string) error {
	status, body, err := c.do(http.MethodPost, "/add_ticker/"+strings.ToUpper(ticker))
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		fmt.Printf("Added ticker %s\n", strings.ToUpper(ticker))
	case http.StatusAlreadyReported:
		fmt.Printf("Ticker %s already in server data\n", strings.ToUpper(ticker))
	default:
		fmt.Printf("Error adding ticker %s: %s\n", ticker, body)
	}
	return nil
}

func (c *client) delete(ticker string) error {
	status, _, err := c.do(http.MethodDelete, "/del_ticker/"+strings.ToUpper(ticker))
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		fmt.Printf("Deleted ticker %s\n", strings.ToUpper(ticker))
	} else {
		fmt.Printf("%s not in server data\n", strings.ToUpper(ticker))
	}
	return nil
}

func (c *client) data(queryTime string) error {
	status, body, err := c.do(http.MethodGet, "/data/"+queryTime)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		fmt.Printf("Server error: %s\n", body)
		return nil
	}

	var result map[string]struct {
		Price  *float64 `json:"price"`
		Signal *float64 `json:"signal"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	for ticker, td := range result {
		fmt.Printf("%s   %s, %s\n", ticker, formatValue(td.Price), formatValue(td.Signal))
	}
	return nil
}

func (c *client) report() error {
	status, body, err := c.do(http.MethodGet, "/report")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		fmt.Printf("Server error: %s\n", body)
		return nil
	}
	fmt.Println(body)
	return nil
}

func formatValue(v *float64) string {
	if v == nil {
		return "No Data"
	}
	return fmt.Sprintf("%g", *v)
}

func (c *client) repl() error {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter command: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "exit":
			return nil
		case line == "report":
			if err := c.report(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case line == "":
		default:
			fields := strings.Fields(line)
			if len(fields) != 2 {
				fmt.Println("commands: add TICKER | delete TICKER | data YYYY-MM-DD-HH:MM | report | exit")
				continue
			}
			var err error
			switch fields[0] {
			case "add":
				err = c.add(fields[1])
			case "delete":
				err = c.delete(fields[1])
			case "data":
				err = c.data(fields[1])
			default:
				fmt.Println("commands: add TICKER | delete TICKER | data YYYY-MM-DD-HH:MM | report | exit")
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func main() {
	var addr string

	root := &cobra.Command{
		Use:           "client",
		Short:         "Interact with a running market data server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&addr, "server", "s", "127.0.0.1:8000", "server address as IP:PORT")

	root.AddCommand(
		&cobra.Command{
			Use:   "add TICKER",
			Short: "Start tracking a ticker",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(addr)
				if err != nil {
					return err
				}
				return c.add(args[0])
			},
		},
		&cobra.Command{
			Use:   "delete TICKER",
			Short: "Stop tracking a ticker",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(addr)
				if err != nil {
					return err
				}
				return c.delete(args[0])
			},
		},
		&cobra.Command{
			Use:   "data TIME",
			Short: "Query price and signal as of TIME (YYYY-MM-DD-HH:MM)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(addr)
				if err != nil {
					return err
				}
				return c.data(args[0])
			},
		},
		&cobra.Command{
			Use:   "report",
			Short: "Regenerate the server-side report",
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(addr)
				if err != nil {
					return err
				}
				return c.report()
			},
		},
		&cobra.Command{
			Use:   "repl",
			Short: "Interactive session",
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(addr)
				if err != nil {
					return err
				}
				if _, _, err := c.do(http.MethodGet, "/"); err != nil {
					return fmt.Errorf("connect to %s: %w", addr, err)
				}
				fmt.Printf("Connected to trading server at %s\n", c.base)
				return c.repl()
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
