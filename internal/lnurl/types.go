package lnurl

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// MinAmountMsat is the smallest invoice the callback will issue.
const MinAmountMsat = 1000

type SuccessAction struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// CallbackResponse is the LUD-06 callback body.
type CallbackResponse struct {
	Status        Status         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	Pr            string         `json:"pr"`
	Verify        string         `json:"verify"`
	SuccessAction *SuccessAction `json:"successAction,omitempty"`
	Routes        []string       `json:"routes"`
}

// WellKnownResponse is the LUD-16 pay request descriptor served under
// /.well-known/lnurlp/{username}.
type WellKnownResponse struct {
	Status         Status `json:"status"`
	Callback       string `json:"callback"`
	MinSendable    uint64 `json:"minSendable"`
	MaxSendable    uint64 `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed,omitempty"`
	Tag            string `json:"tag"`
	NostrPubkey    string `json:"nostrPubkey,omitempty"`
	AllowsNostr    bool   `json:"allowsNostr"`
}

// VerifyResponse is the LUD-21 verify body. The mint runtime does not expose
// the payer preimage, so it is always empty.
type VerifyResponse struct {
	Status   Status `json:"status"`
	Settled  bool   `json:"settled"`
	Preimage string `json:"preimage"`
	Pr       string `json:"pr"`
}

type errorResponse struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}
