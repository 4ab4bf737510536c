// internal/workers/learning/collect-project-feedback/models.go
package collectprojectfeedback

type Input struct {
	RequestedBy string `json:"requestedBy,omitempty"`
}

type Output struct {
	Scanned        int      `json:"feedbackScanned"`
	Inserted       int      `json:"feedbackInserted"`
	Existing       int      `json:"feedbackExisting"`
	Skipped        int      `json:"feedbackSkipped"`
	Failed         int      `json:"feedbackFailed"`
	FailureDetails []string `json:"feedbackFailures"`
}
