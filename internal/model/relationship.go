package model

// Relationship is a named outcome a processor routes a record to
type Relationship struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var (
	// RelSuccess is the relationship for records processed without error
	RelSuccess = Relationship{Name: "success", Description: "Record was processed successfully"}
	// RelFailure is the relationship for records that could not be processed
	RelFailure = Relationship{Name: "failure", Description: "Record could not be processed"}
	// RelModelFailure is the relationship for records whose model could not be registered
	RelModelFailure = Relationship{Name: "model-failure", Description: "Model could not be registered with the scoring service"}
	// RelMatched is the relationship for records matching a routing expression
	RelMatched = Relationship{Name: "matched", Description: "Record matched the routing expression"}
	// RelUnmatched is the relationship for records not matching a routing expression
	RelUnmatched = Relationship{Name: "unmatched", Description: "Record did not match the routing expression"}
)

// Continues reports whether a record routed to r moves on to the next
// processor in the flow
func (r Relationship) Continues() bool {
	return r.Name == RelSuccess.Name || r.Name == RelMatched.Name
}

func (r Relationship) String() string {
	return r.Name
}
