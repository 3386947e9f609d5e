package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

// absent marks an unset statistic on the wire.
const absent = -1

// ProcessEngine runs the difficulty engine as a child process per calculation.
// The request is one JSON document on stdin and the response one JSON
// document on stdout.
type ProcessEngine struct {
	command string
	args    []string
	env     []string
	timeout time.Duration
	log     logger.Logger
}

// NewProcessEngine returns an engine that executes command.
func NewProcessEngine(command string, opts ...Option) *ProcessEngine {
	e := &ProcessEngine{
		command: command,
		timeout: 10 * time.Second,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engine")
	return e
}

type request struct {
	Beatmap  []byte  `json:"beatmap"`
	Mode     int     `json:"mode"`
	Mods     uint32  `json:"mods"`
	Combo    int     `json:"combo"`
	Accuracy float64 `json:"acc"`
	N300     int     `json:"n300"`
	N100     int     `json:"n100"`
	N50      int     `json:"n50"`
	NGeki    int     `json:"ngeki"`
	NKatu    int     `json:"nkatu"`
	NMiss    int     `json:"nmiss"`
}

type response struct {
	Attributes
	Error string `json:"error,omitempty"`
}

// Parse checks the beatmap header locally; the engine itself only sees the
// bytes during Calculate.
func (e *ProcessEngine) Parse(_ context.Context, data []byte) (*Beatmap, error) {
	bm, err := Parse(data)
	if err != nil {
		return nil, wrap("parse", err)
	}
	return bm, nil
}

// Calculate runs the engine for a single play.
func (e *ProcessEngine) Calculate(ctx context.Context, bm *Beatmap, p Params) (Attributes, error) {
	if bm == nil {
		return Attributes{}, wrap("calculate", ErrMalformedBeatmap)
	}
	payload, err := json.Marshal(encode(bm, p))
	if err != nil {
		return Attributes{}, wrap("calculate", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	metrics.RecordEngineLatency(float64(time.Since(start).Microseconds()) / 1000)

	if runErr != nil {
		metrics.RecordEngineError()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Attributes{}, wrap("calculate", ctxErr)
		}
		e.log.Debug(ctx, "engine exited with error",
			logger.Error(runErr),
			logger.String("stderr", stderr.String()))
		return Attributes{}, wrap("calculate", fmt.Errorf("%w: %w", ErrEngineFailed, runErr))
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		metrics.RecordEngineError()
		return Attributes{}, wrap("calculate", fmt.Errorf("%w: %w", ErrBadResponse, err))
	}
	if resp.Error != "" {
		metrics.RecordEngineError()
		return Attributes{}, wrap("calculate", fmt.Errorf("%w: %s", ErrEngineFailed, resp.Error))
	}
	return resp.Attributes, nil
}

func encode(bm *Beatmap, p Params) request {
	r := request{
		Beatmap:  bm.Data,
		Mode:     p.Mode,
		Mods:     uint32(p.Mods),
		Combo:    intOrAbsent(p.Combo),
		Accuracy: absent,
		N300:     intOrAbsent(p.N300),
		N100:     intOrAbsent(p.N100),
		N50:      intOrAbsent(p.N50),
		NGeki:    intOrAbsent(p.NGeki),
		NKatu:    intOrAbsent(p.NKatu),
		NMiss:    intOrAbsent(p.NMiss),
	}
	if p.Accuracy != nil {
		r.Accuracy = *p.Accuracy
	}
	return r
}

func intOrAbsent(v *int) int {
	if v == nil {
		return absent
	}
	return *v
}

// IsTimeout reports whether err is an engine call that ran out of time.
func IsTimeout(err error) bool {
	return IsEngineError(err) && errors.Is(err, context.DeadlineExceeded)
}
