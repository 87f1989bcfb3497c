package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/internal/processor/store"
	genericoptions "github.com/autopeer-io/remoteops/pkg/options"
)

type inspectOptions struct {
	Database  *genericoptions.DatabaseOptions `mapstructure:"database"`
	VehicleID string                          `mapstructure:"-"`
	RequestID string                          `mapstructure:"-"`
	Output    string                          `mapstructure:"-"`
}

func newInspectCommand(ctx context.Context, configFile *string) *cobra.Command {
	o := &inspectOptions{Database: genericoptions.NewDatabaseOptions(), Output: "table"}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a request with its status and response history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd.Flags(), *configFile, o); err != nil {
				return err
			}
			if o.VehicleID == "" || o.RequestID == "" {
				return errors.New("--vehicle and --request are required")
			}
			if o.Output != "table" && o.Output != "yaml" {
				return fmt.Errorf("unsupported output format %q", o.Output)
			}

			repo, err := store.Open(o.Database)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			req, err := repo.Requests().Get(ctx, o.VehicleID, o.RequestID)
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("request %s of vehicle %s not found", o.RequestID, o.VehicleID)
			}
			if err != nil {
				return err
			}

			return printRequest(cmd.OutOrStdout(), req, o.Output)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&o.VehicleID, "vehicle", o.VehicleID, "Vehicle id of the request.")
	fs.StringVar(&o.RequestID, "request", o.RequestID, "Request id.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format: table or yaml.")
	o.Database.AddFlags(fs)

	return cmd
}

type responseView struct {
	MessageID     string `yaml:"messageId"`
	CorrelationID string `yaml:"correlationId,omitempty"`
	Code          string `yaml:"code"`
	Origin        string `yaml:"origin,omitempty"`
	UserID        string `yaml:"userId,omitempty"`
	Orphan        bool   `yaml:"orphan,omitempty"`
	Synthetic     bool   `yaml:"synthetic,omitempty"`
	ReceivedAt    string `yaml:"receivedAt"`
}

type requestView struct {
	RequestID      string         `yaml:"requestId"`
	VehicleID      string         `yaml:"vehicleId"`
	Family         string         `yaml:"family,omitempty"`
	Status         string         `yaml:"status"`
	Origin         string         `yaml:"origin,omitempty"`
	UserID         string         `yaml:"userId,omitempty"`
	CorrelationID  string         `yaml:"correlationId"`
	ScheduleID     string         `yaml:"scheduleId,omitempty"`
	DeliveryCutoff string         `yaml:"deliveryCutoff"`
	Responses      []responseView `yaml:"responses"`
}

func newRequestView(req *model.Request) requestView {
	status := string(req.Status)
	if status == "" {
		status = "OPEN"
	}

	v := requestView{
		RequestID:      req.RequestID,
		VehicleID:      req.VehicleID,
		Family:         string(req.Family),
		Status:         status,
		Origin:         req.Origin,
		UserID:         req.UserID,
		CorrelationID:  req.CorrelationID,
		ScheduleID:     req.ScheduleID,
		DeliveryCutoff: req.DeliveryCutoff.UTC().Format(time.RFC3339),
		Responses:      make([]responseView, 0, len(req.Responses)),
	}
	for _, r := range req.Responses {
		v.Responses = append(v.Responses, responseView{
			MessageID:     r.MessageID,
			CorrelationID: r.CorrelationID,
			Code:          string(r.Code),
			Origin:        ptr.Deref(r.Origin, ""),
			UserID:        ptr.Deref(r.UserID, ""),
			Orphan:        r.Orphan,
			Synthetic:     r.Synthetic,
			ReceivedAt:    r.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}
	return v
}

func printRequest(w io.Writer, req *model.Request, format string) error {
	v := newRequestView(req)

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	t := uitable.New()
	t.MaxColWidth = 60
	t.AddRow("REQUEST:", v.RequestID)
	t.AddRow("VEHICLE:", v.VehicleID)
	t.AddRow("FAMILY:", v.Family)
	t.AddRow("STATUS:", v.Status)
	t.AddRow("ORIGIN:", v.Origin)
	t.AddRow("CORRELATION:", v.CorrelationID)
	t.AddRow("SCHEDULE:", v.ScheduleID)
	t.AddRow("CUTOFF:", v.DeliveryCutoff)
	if _, err := fmt.Fprintln(w, t); err != nil {
		return err
	}

	rt := uitable.New()
	rt.AddRow("MESSAGE", "CODE", "CORRELATION", "RECEIVED", "FLAGS")
	for _, r := range v.Responses {
		flags := ""
		if r.Synthetic {
			flags = "synthetic"
		}
		rt.AddRow(r.MessageID, r.Code, r.CorrelationID, r.ReceivedAt, flags)
	}
	_, err := fmt.Fprintln(w, rt)
	return err
}
