package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const usage = `usage: cli [flags] <command> [args]

commands:
  add <url>       create a monitor (prompts for the URL when omitted)
  list            list monitors
  check <id>      run a check now
  pause <id>      stop scheduled checks
  resume <id>     resume scheduled checks

env: API_BASE (default http://localhost:8080), API_KEY`

func main() {
	name := flag.String("name", "", "monitor name for add")
	kind := flag.String("kind", "", "check kind for add: http or schp")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	c := &client{base: strings.TrimRight(api, "/"), key: os.Getenv("API_KEY"), http: &http.Client{Timeout: 60 * time.Second}}

	args := flag.Args()
	cmd := "add"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "add":
		raw := ""
		if len(args) > 0 {
			raw = args[0]
		} else {
			fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
			raw, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		}
		err = c.call(http.MethodPost, "/api/monitors", map[string]string{
			"url":        strings.TrimSpace(raw),
			"name":       *name,
			"check_kind": *kind,
		})
	case "list":
		err = c.call(http.MethodGet, "/api/monitors", nil)
	case "check", "pause", "resume":
		if len(args) != 1 {
			flag.Usage()
			os.Exit(2)
		}
		err = c.call(http.MethodPost, "/api/monitors/"+args[0]+"/"+cmd, nil)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	key  string
	http *http.Client
}

// call sends the request and pretty-prints the JSON response.
func (c *client) call(method, path string, body any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Println(strings.TrimSpace(string(data)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API returned status: %s", resp.Status)
	}
	return nil
}
