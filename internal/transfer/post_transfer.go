package transfer

type PostSubmission struct {
	AccountID int64    `json:"account_id"`
	Email     string   `json:"email"`
	Caption   string   `json:"caption"`
	Media     []string `json:"media"`
}

type DeclineRequest struct {
	DeclinedMessage string `json:"declined_message"`
}

type TriggerResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	PostID         int64  `json:"post_id,omitempty"`
	Published      bool   `json:"published"`
	ExternalPostID string `json:"instagram_post_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

type EmailMessage struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}
