package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]
	api := newAPIClient(getAPIURL())

	var err error
	switch command {
	case "prospectus":
		err = handleProspectus(api, args)
	case "health":
		err = api.printHealth(os.Stdout)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func handleProspectus(api *apiClient, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: tenantonboard prospectus <create|list|get|promote|activate|verify>")
		return nil
	}

	subCmd := args[0]
	switch subCmd {
	case "create":
		return createProspectus(api, args[1:])
	case "list":
		return listProspectus(api, args[1:])
	case "get":
		return withID(args[1:], "get", func(id string) error { return api.show(os.Stdout, http.MethodGet, prospectusPath(id), nil) })
	case "promote":
		return withID(args[1:], "promote", func(id string) error {
			return api.show(os.Stdout, http.MethodPut, prospectusPath(id)+"/promote-status", nil)
		})
	case "activate":
		return withID(args[1:], "activate", func(id string) error {
			return api.show(os.Stdout, http.MethodGet, prospectusPath(id)+"/identity-activation", nil)
		})
	case "verify":
		if len(args) < 3 {
			fmt.Println("Usage: tenantonboard prospectus verify <prospectus-id> <activation-key>")
			return nil
		}
		return api.show(os.Stdout, http.MethodGet,
			prospectusPath(args[1])+"/identity-verification/"+url.PathEscape(args[2]), nil)
	default:
		fmt.Printf("unknown prospectus command: %s\n", subCmd)
		return nil
	}
}

func createProspectus(api *apiClient, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	title := fs.String("title", "", "organization title")
	slug := fs.String("slug", "", "unique slug")
	plan := fs.String("subscription", "TRIAL", "TRIAL, STARTER, BUSINESS or ENTERPRISE")
	first := fs.String("first-name", "", "requester first name")
	last := fs.String("last-name", "", "requester last name")
	email := fs.String("email", "", "requester email")
	countryCode := fs.String("country-code", "", "phone country code (optional)")
	phone := fs.String("phone", "", "phone number (optional)")
	designation := fs.String("designation", "", "requester designation")

	_ = fs.Parse(args)

	if *title == "" || *slug == "" || *email == "" || *first == "" || *last == "" || *designation == "" {
		fmt.Println("Error: title, slug, first-name, last-name, email and designation are required")
		fs.PrintDefaults()
		return nil
	}

	payload := map[string]string{
		"title":                 *title,
		"slug":                  *slug,
		"subscription":          *plan,
		"requester_first_name":  *first,
		"requester_last_name":   *last,
		"requester_email":       *email,
		"requester_designation": *designation,
	}
	if *countryCode != "" {
		payload["requester_phone_number_country_code"] = *countryCode
	}
	if *phone != "" {
		payload["requester_phone_number"] = *phone
	}
	return api.show(os.Stdout, http.MethodPost, "/tenant-prospectus", payload)
}

func listProspectus(api *apiClient, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	page := fs.Int("page", 1, "page number (1-indexed)")
	limit := fs.Int("limit", 10, "items per page (1-100)")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("page", strconv.Itoa(*page))
	q.Set("limit", strconv.Itoa(*limit))

	var items []map[string]any
	if err := api.do(http.MethodGet, "/tenant-prospectus?"+q.Encode(), nil, &items); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tTITLE\tSTATUS")
	for _, p := range items {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", p["id"], p["slug"], p["title"], p["status"])
	}
	return w.Flush()
}

func withID(args []string, name string, fn func(id string) error) error {
	if len(args) < 1 {
		fmt.Printf("Usage: tenantonboard prospectus %s <prospectus-id>\n", name)
		return nil
	}
	return fn(args[0])
}

func prospectusPath(id string) string {
	return "/tenant-prospectus/" + url.PathEscape(id)
}

// apiClient talks to the onboarding HTTP API
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// apiError carries the server's detail or validation errors
type apiError struct {
	Status int               `json:"-"`
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors"`
}

func (e *apiError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("request failed (%d): %v", e.Status, e.Errors)
	}
	if e.Detail != "" {
		return fmt.Sprintf("request failed (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("request failed (%d)", e.Status)
}

func (c *apiClient) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// show performs the call and pretty-prints the JSON result.
func (c *apiClient) show(w io.Writer, method, path string, body any) error {
	var out any
	if err := c.do(method, path, body, &out); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}

func (c *apiClient) printHealth(w io.Writer) error {
	root := *c
	if u, err := url.Parse(c.baseURL); err == nil {
		u.Path = ""
		root.baseURL = u.String()
	}
	return root.show(w, http.MethodGet, "/health/readiness", nil)
}

// Helper functions
func getAPIURL() string {
	if u := os.Getenv("TENANTONBOARD_API"); u != "" {
		return u
	}
	return "http://localhost:8080/api/v1"
}

func printUsage() {
	fmt.Print(`Tenant onboarding CLI

Usage:
  tenantonboard <command> [options]

Commands:
  prospectus  Prospectus operations (create, list, get, promote, activate, verify)
  health      Show server readiness
  help        Show this help message

Environment Variables:
  TENANTONBOARD_API    API endpoint (default: http://localhost:8080/api/v1)

Examples:
  tenantonboard prospectus create -title "Acme Corp" -slug acme -first-name Ada -last-name Lovelace -email ada@acme.io -designation CTO
  tenantonboard prospectus list -page 1 -limit 20
  tenantonboard prospectus promote 7b0e4c1a-0000-4000-8000-000000000001
  tenantonboard prospectus verify 7b0e4c1a-0000-4000-8000-000000000001 <activation-key>
`)
}
