package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lumen-io/client/internal/common"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

/*
Sends a single request to the protected API with the current session.
An expired access token is refreshed and the request replayed once.

	lumen request GET /api/patients/
	lumen request POST /api/notes/ -d '{"text": "hello"}'
*/
var requestCmd = &cobra.Command{
	Use:     "request METHOD PATH",
	Short:   "Send an authenticated request to the API",
	Args:    cobra.ExactArgs(2),
	PreRunE: preAuthenticateE,
	RunE:    runRequest,
}

func runRequest(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path := args[1]

	data, _ := cmd.Flags().GetString("data")
	headers, _ := cmd.Flags().GetStringArray("header")

	var body []byte
	if len(data) > 0 {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("request body is not valid JSON")
		}
		body = []byte(data)
	}

	req := models.NewRequestDescriptor(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, header := range headers {
		key, value, found := strings.Cut(header, ":")
		if !found {
			return fmt.Errorf("invalid header %q, expected Key: Value", header)
		}
		req.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	ctx, cleanup := common.WithInterrupt(context.Background())
	defer cleanup()

	resp, err := lumen.Client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, session.ErrRefreshExhausted) {
			// The redirect hook has already told the user to sign in
			return errors.New("session expired")
		}

		var httpErr *models.HTTPError
		if errors.As(err, &httpErr) && httpErr.HasResponse() {
			fmt.Println(errorStyle.Render(fmt.Sprintf("%d %s", httpErr.StatusCode, http.StatusText(httpErr.StatusCode))))
			printBody(httpErr.Body)
			return fmt.Errorf("request failed")
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Debugln("Request failed")
		return fmt.Errorf("request failed: %w", err)
	}

	fmt.Println(infoStyle.Render(fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))))
	printBody(resp.Body)

	return nil
}

func printBody(body []byte) {
	if len(body) == 0 {
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		fmt.Println(pretty.String())
		return
	}
	fmt.Println(string(body))
}

func init() {
	requestCmd.Flags().StringP("data", "d", "", "JSON request body")
	requestCmd.Flags().StringArrayP("header", "H", nil, "Extra request header (Key: Value)")

	rootCmd.AddCommand(requestCmd)
}
