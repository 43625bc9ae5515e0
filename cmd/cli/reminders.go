package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ownerID  int64
	body     string
	to       string
	sendAt   string
	timezone string
	repeat   string
	interval int
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Schedule a reminder",
	RunE: func(cmd *cobra.Command, args []string) error {
		when, err := time.Parse(time.RFC3339, sendAt)
		if err != nil {
			return fmt.Errorf("invalid --send-at, expected RFC3339: %w", err)
		}

		req := map[string]any{
			"owner_id":      ownerID,
			"body":          body,
			"destination":   to,
			"send_at":       when.UTC().Format(time.RFC3339),
			"user_timezone": timezone,
		}
		if repeat != "" {
			req["repeat"] = map[string]any{"kind": repeat, "interval": interval}
		}

		return callAPI(http.MethodPost, "/api/reminders", req)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAPI(http.MethodGet, fmt.Sprintf("/api/reminders?owner_id=%d", ownerID), nil)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [reminder-id]",
	Short: "Cancel a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callAPI(http.MethodDelete,
			fmt.Sprintf("/api/reminders/%s?owner_id=%d", args[0], ownerID), nil)
	},
}

func callAPI(method, path string, payload any) error {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, viper.GetString("service_url")+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", viper.GetString("internal_api_secret"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, out)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func init() {
	createCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner user id")
	createCmd.Flags().StringVar(&body, "body", "", "message text")
	createCmd.Flags().StringVar(&to, "to", "", "destination phone number")
	createCmd.Flags().StringVar(&sendAt, "send-at", "", "fire time (RFC3339)")
	createCmd.Flags().StringVar(&timezone, "tz", "UTC", "IANA timezone for recurrence")
	createCmd.Flags().StringVar(&repeat, "repeat", "", "repeat kind: daily, weekly, monthly, yearly")
	createCmd.Flags().IntVar(&interval, "interval", 1, "repeat interval")
	createCmd.MarkFlagRequired("owner")
	createCmd.MarkFlagRequired("body")
	createCmd.MarkFlagRequired("to")
	createCmd.MarkFlagRequired("send-at")

	listCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner user id")
	listCmd.MarkFlagRequired("owner")

	cancelCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner user id")
	cancelCmd.MarkFlagRequired("owner")

	rootCmd.AddCommand(createCmd, listCmd, cancelCmd)
}
