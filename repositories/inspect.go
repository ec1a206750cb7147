package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders relay keys for the debug Badger inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, messagePrefix):
		var record domain.MessageRecord
		if err := json.Unmarshal(val, &record); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = strings.ToUpper(string(record.Type))
		row.Detail = fmt.Sprintf("%s -> %s: %s", record.SenderID, record.ReceiverID, record.Text)
		row.Scores = fmt.Sprintf("read:%t", record.IsRead)
	case strings.HasPrefix(key, "account_email:"):
		row.Type = "EMAIL_INDEX"
		row.Detail = string(val)
	case strings.HasPrefix(key, "account:"):
		var account Account
		if err := json.Unmarshal(val, &account); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = strings.ToUpper(string(account.Kind))
		row.Detail = fmt.Sprintf("%s <%s>", account.Name, account.Email)
		row.Scores = fmt.Sprintf("suspended:%t", account.Suspended)
	}
	return row
}
