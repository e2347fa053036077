package memory

import (
	"testing"

	"github.com/askarthikey/cleverSM/internal/adapters/secondary/repository/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(*testing.T) repotest.Stores {
		s := NewStore()
		return repotest.Stores{Users: s.Users(), Requests: s.FollowRequests(), Notifications: s.Notifications()}
	})
}
