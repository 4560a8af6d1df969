package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) get(path string) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	resp, err := c.HTTP.Get(u)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("AUTHGATE_URL", "http://localhost:8080")
		out     = envOr("AUTHGATE_OUT", "text")
	)

	c := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:   "authgatectl",
		Short: "CLI de operación para authgate",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.BaseURL = baseURL
			c.OutFormat = out
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del gateway (env AUTHGATE_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "formato de salida: text | json (env AUTHGATE_OUT)")

	health := &cobra.Command{
		Use:   "health",
		Short: "Consulta /healthz y /readyz",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range []string{"/healthz", "/readyz"} {
				status, body, err := c.get(path)
				if err != nil {
					return err
				}
				fmt.Printf("%s: ", path)
				c.print(status, body)
			}
			return nil
		},
	}

	info := &cobra.Command{
		Use:   "info <token>",
		Short: "Intercambia un delivery token por su payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.get("/auth_info?format=json&token=" + url.QueryEscape(args[0]))
			if err != nil {
				return err
			}
			c.print(status, body)
			if status != http.StatusOK {
				return fmt.Errorf("token lookup devolvió %d", status)
			}
			return nil
		},
	}

	providers := &cobra.Command{
		Use:   "metrics",
		Short: "Vuelca /metrics del gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.get("/metrics")
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("metrics devolvió %d", status)
			}
			fmt.Print(string(body))
			return nil
		},
	}

	root.AddCommand(health, info, providers)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
