package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/battos/battdiag/pkg/history"
)

// Diagnostic kinds accepted by /battery/diagnose/<kind>.
const (
	KindSOC          = "soc"
	KindSOH          = "soh"
	KindResistance   = "resistance"
	KindCapacityFade = "capacity_fade"
	KindCellBalance  = "cell_balance"
	KindCycleLife    = "cycle_life"
	KindSafety       = "safety"
	KindThermal      = "thermal"
	KindFault        = "fault"
	KindVoltage      = "voltage"
)

// Diagnose runs one diagnostic and returns the raw JSON result.
func (c *Client) Diagnose(ctx context.Context, kind string, body any) (json.RawMessage, error) {
	ret, err := c.Post(ctx, "/battery/diagnose/"+url.PathEscape(kind), body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run %s diagnostic", kind)
	}
	return ret, nil
}

// DiagnoseAs runs one diagnostic and decodes the result into T, usually
// one of the diagnostics result types.
func DiagnoseAs[T any](ctx context.Context, c *Client, kind string, body any) (*T, error) {
	ret, err := c.Diagnose(ctx, kind, body)
	if err != nil {
		return nil, err
	}
	return decode[T](ret, kind+" result")
}

// Logs returns the caller's diagnostic history, newest first.
func (c *Client) Logs(ctx context.Context) ([]history.Entry, error) {
	ret, err := c.Get(ctx, "/battery/logs")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get logs")
	}
	resp, err := decode[struct {
		Logs []history.Entry `json:"logs"`
	}](ret, "logs")
	if err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// VoltageClass mirrors chemistry.VoltageClass on the wire.
type VoltageClass struct {
	NominalVoltage float64 `json:"nominalVoltage"`
	MaxVoltage     float64 `json:"maxVoltage"`
	MinVoltage     float64 `json:"minVoltage"`
}

type ChemistryInfo struct {
	BatteryType    string         `json:"batteryType"`
	MinTemperature float64        `json:"minTemperature"`
	MaxTemperature float64        `json:"maxTemperature"`
	Classes        []VoltageClass `json:"classes"`
	Factors        *ScaleFactors  `json:"factors,omitempty"`
}

// ScaleFactors mirrors chemistry.ScaleFactors on the wire.
type ScaleFactors struct {
	MaxVoltageFactor float64 `json:"maxVoltageFactor"`
	MinVoltageFactor float64 `json:"minVoltageFactor"`
}

// Chemistries lists the chemistry registry of the daemon.
func (c *Client) Chemistries(ctx context.Context) ([]ChemistryInfo, error) {
	ret, err := c.Get(ctx, "/battery/chemistries")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get chemistries")
	}
	resp, err := decode[struct {
		Chemistries []ChemistryInfo `json:"chemistries"`
	}](ret, "chemistries")
	if err != nil {
		return nil, err
	}
	return resp.Chemistries, nil
}

func (c *Client) GetVersion(ctx context.Context) (string, error) {
	ret, err := c.Get(ctx, "/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	v, err := decode[string](ret, "version")
	if err != nil {
		return "", err
	}
	return *v, nil
}

// Health returns nil when the daemon reports healthy.
func (c *Client) Health(ctx context.Context) error {
	ret, err := c.Get(ctx, "/health")
	if err != nil {
		return pkgerrors.Wrap(err, "failed to get health")
	}
	resp, err := decode[struct {
		Status string `json:"status"`
	}](ret, "health")
	if err != nil {
		return err
	}
	if resp.Status != "healthy" {
		return pkgerrors.Errorf("daemon reports %q", resp.Status)
	}
	return nil
}

// ===== Admin APIs =====

type KeyInfo struct {
	Key   string `json:"key"`
	Usage int    `json:"usage"`
	Limit int    `json:"limit"`
}

func (c *Client) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	ret, err := c.Get(ctx, "/admin/keys")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list keys")
	}
	resp, err := decode[struct {
		Keys []KeyInfo `json:"keys"`
	}](ret, "keys")
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (c *Client) AddKey(ctx context.Context, key string) error {
	_, err := c.Post(ctx, "/admin/keys", map[string]string{"key": key})
	return pkgerrors.Wrap(err, "failed to add key")
}

func (c *Client) RemoveKey(ctx context.Context, key string) error {
	_, err := c.Send(ctx, http.MethodDelete, "/admin/keys/"+url.PathEscape(key), nil)
	return pkgerrors.Wrap(err, "failed to remove key")
}

func (c *Client) ResetKey(ctx context.Context, key string) error {
	_, err := c.Post(ctx, "/admin/keys/"+url.PathEscape(key)+"/reset", nil)
	return pkgerrors.Wrap(err, "failed to reset key")
}

// ResetAllUsage zeroes the usage of every key.
func (c *Client) ResetAllUsage(ctx context.Context) error {
	_, err := c.Post(ctx, "/admin/usage/reset", nil)
	return pkgerrors.Wrap(err, "failed to reset usage")
}

// ResetSchedule describes the automatic usage reset. NextReset is nil when
// no schedule is set.
type ResetSchedule struct {
	Schedule  string     `json:"schedule"`
	NextReset *time.Time `json:"nextReset"`
	Running   bool       `json:"running"`
}

func (c *Client) GetResetSchedule(ctx context.Context) (*ResetSchedule, error) {
	ret, err := c.Get(ctx, "/admin/usage/schedule")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get reset schedule")
	}
	return decode[ResetSchedule](ret, "reset schedule")
}

// SkipReset skips the next scheduled usage reset.
func (c *Client) SkipReset(ctx context.Context) (*ResetSchedule, error) {
	ret, err := c.Post(ctx, "/admin/usage/schedule/skip", nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to skip reset")
	}
	return decode[ResetSchedule](ret, "reset schedule")
}
