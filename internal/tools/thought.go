package tools

import "context"

const thoughtFailed = "failed"

// validateThought returns the first rule a thought violates, or "".
func validateThought(in ThoughtData) string {
	switch {
	case in.SessionID == "":
		return "Invalid sessionId: must be provided"
	case in.Thought == "":
		return "Invalid thought: must be a string"
	case in.ThoughtNumber <= 0:
		return "Invalid thoughtNumber: must be a number greater than 0"
	case in.TotalThoughts <= 0:
		return "Invalid totalThoughts: must be a number greater than 0"
	}
	return ""
}

// processThought validates one reasoning step. Invalid input yields a successful response
// with status "failed" so the caller's session continues. No state is kept between calls.
func processThought(_ context.Context, deps *Dependencies, in ThoughtData) (ThoughtResponse, error) {
	resp := ThoughtResponse{
		SessionID:         in.SessionID,
		ThoughtNumber:     in.ThoughtNumber,
		TotalThoughts:     in.TotalThoughts,
		NextThoughtNeeded: in.NextThoughtNeeded,
	}
	if msg := validateThought(in); msg != "" {
		resp.Error = msg
		resp.Status = thoughtFailed
		return resp, nil
	}

	resp.TotalThoughts = max(in.ThoughtNumber, in.TotalThoughts)

	attrs := []any{
		"session_id", in.SessionID,
		"thought_number", in.ThoughtNumber,
		"total_thoughts", resp.TotalThoughts,
	}
	if in.IsRevision != nil {
		attrs = append(attrs, "is_revision", *in.IsRevision)
	}
	if in.RevisesThought != nil {
		attrs = append(attrs, "revises_thought", *in.RevisesThought)
	}
	if in.BranchFromThought != nil {
		attrs = append(attrs, "branch_from_thought", *in.BranchFromThought)
	}
	if in.BranchID != nil {
		attrs = append(attrs, "branch_id", *in.BranchID)
	}
	if in.NeedsMoreThoughts != nil {
		attrs = append(attrs, "needs_more_thoughts", *in.NeedsMoreThoughts)
	}
	deps.logger().Debug("processed thought", attrs...)
	return resp, nil
}
