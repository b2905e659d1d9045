package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) error

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) error {
	return f(ctx, req)
}

// StaticApprover always gives the same decision.
type StaticApprover struct {
	Reject bool
	// Reason is reported with a rejection.
	Reason string
}

// Approve implements Approver.
func (a StaticApprover) Approve(ctx context.Context, _ ApprovalRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Reject {
		if a.Reason != "" {
			return fmt.Errorf("%w: %s", ErrRejected, a.Reason)
		}
		return ErrRejected
	}
	return nil
}

// WaitingApprover never decides, leaving the approval to time out.
type WaitingApprover struct{}

// Approve implements Approver.
func (WaitingApprover) Approve(ctx context.Context, _ ApprovalRequest) error {
	<-ctx.Done()
	return ctx.Err()
}

// PromptApprover asks on a terminal. "y" or "yes" approves, anything else
// rejects.
type PromptApprover struct {
	In  io.Reader
	Out io.Writer
}

// readDeadliner is an input whose blocked reads can be interrupted, such as
// *os.File for a terminal or pipe.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Approve implements Approver. When ctx is done a pending read is
// interrupted if In supports read deadlines; otherwise the reading
// goroutine stays blocked until In yields a line or closes.
func (a PromptApprover) Approve(ctx context.Context, req ApprovalRequest) error {
	fmt.Fprintf(a.Out, "Execution %s awaiting approval\n", req.ExecutionID)
	if req.Summary != "" {
		fmt.Fprintf(a.Out, "  %s\n", req.Summary)
	}
	if req.Revision.CommitID != "" {
		fmt.Fprintf(a.Out, "  revision: %s\n", req.Revision.CommitID)
	}
	if req.Image.ImageURI != "" {
		fmt.Fprintf(a.Out, "  image:    %s\n", req.Image.ImageURI)
	}
	fmt.Fprint(a.Out, "Approve deployment? [y/N]: ")

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(a.In).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(a.Out)
		if d, ok := a.In.(readDeadliner); ok && d.SetReadDeadline(time.Now()) == nil {
			<-answer
			_ = d.SetReadDeadline(time.Time{})
		}
		return ctx.Err()
	case s := <-answer:
		if s == "y" || s == "yes" {
			return nil
		}
		return fmt.Errorf("%w: answered %q", ErrRejected, s)
	}
}
