package chat

type Message struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}
