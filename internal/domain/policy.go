package domain

// PolicyRule is a deployment-local precondition layered after the
// statutory validation chain. The expression is CEL over the request
// shape and must evaluate to bool; true means the request passes.
type PolicyRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Message returned to the caller when the rule rejects a request.
	Message string `json:"message"`

	// Whether the rule is active
	Enabled bool `json:"enabled"`
}
