package main

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"telephony/internal/ipc"
	"telephony/internal/tapi"
)

type networkOp struct {
	use   string
	short string
	kind  tapi.Kind
	args  cobra.PositionalArgs
}

var networkOps = []networkOp{
	{use: "scan", short: "List the operators visible to a slot", kind: tapi.KindScan, args: cobra.NoArgs},
	{use: "select-auto", short: "Register a slot in automatic operator selection", kind: tapi.KindSelectAuto, args: cobra.NoArgs},
	{use: "select-manual <operator-id>", short: "Register a slot with the operator object path returned by scan", kind: tapi.KindSelectManual, args: cobra.ExactArgs(1)},
	{use: "registration", short: "Show the registration of a slot", kind: tapi.KindRegistrationInfo, args: cobra.NoArgs},
	{use: "serving-cell", short: "Show the serving cell of a slot", kind: tapi.KindServingCellInfo, args: cobra.NoArgs},
	{use: "neighbouring-cells", short: "List the neighbouring cells of a slot", kind: tapi.KindNeighbouringCellInfo, args: cobra.NoArgs},
}

func newNetworkCommands(ctx *commandContext) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(networkOps))
	for _, op := range networkOps {
		cmds = append(cmds, newNetworkCommand(ctx, op))
	}
	return cmds
}

func newNetworkCommand(ctx *commandContext, op networkOp) *cobra.Command {
	var slot int
	var direct bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   op.use,
		Short: op.short,
		Args:  op.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			operatorID := ""
			if len(args) > 0 {
				operatorID = args[0]
			}
			ar, err := runOperation(commandCtx(cmd), ctx, op.kind, slot, operatorID, direct)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resultJSON(&ar))
			}
			if ar.Status != tapi.StatusOK {
				return fmt.Errorf("slot %d %s: %w", ar.Slot, ar.Kind, ar.Err)
			}
			renderResult(cmd.OutOrStdout(), &ar)
			return nil
		},
	}
	cmd.Flags().IntVarP(&slot, "slot", "s", 0, "Modem slot")
	cmd.Flags().BoolVar(&direct, "direct", false, "Use the message bus directly even when the daemon is running")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

// runOperation sends the operation through the daemon when its socket
// answers, and over a private bus session otherwise.
func runOperation(cmdCtx context.Context, ctx *commandContext, kind tapi.Kind, slot int, operatorID string, direct bool) (tapi.AsyncResult, error) {
	if !direct {
		client, err := ipc.Dial(ctx.socketPath())
		if err == nil {
			defer client.Close()
			resp, err := client.Query(ipc.QueryRequest{Slot: slot, Operation: kind.String(), OperatorID: operatorID})
			if err != nil {
				return tapi.AsyncResult{}, err
			}
			return resultFromEvent(resp.Event)
		}
		if !daemonUnavailable(err) {
			return tapi.AsyncResult{}, wrapDialError(err, ctx.socketPath())
		}
	}

	s, err := openSession(cmdCtx, ctx.configValue(), ctx.logger())
	if err != nil {
		return tapi.AsyncResult{}, err
	}
	defer s.close()
	return s.query(cmdCtx, kind, slot, operatorID)
}

func daemonUnavailable(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}

type resultDocument struct {
	Slot          int    `json:"slot"`
	Event         string `json:"event"`
	Status        string `json:"status"`
	Count         int    `json:"count"`
	Payload       any    `json:"payload,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error,omitempty"`
}

func resultJSON(ar *tapi.AsyncResult) resultDocument {
	doc := resultDocument{
		Slot:          ar.Slot,
		Event:         ar.Kind.String(),
		Status:        ar.Status.String(),
		Count:         ar.Count,
		Payload:       ar.Payload,
		CorrelationID: ar.CorrelationID,
	}
	if ar.Err != nil {
		doc.Error = ar.Err.Error()
	}
	return doc
}
