package inmem

import (
	"context"
	"sync"

	"github.com/ichigozero/todokit/usersvc"
)

type userRepository struct {
	mtx   sync.RWMutex
	users map[string]usersvc.User
}

func NewUserRepository() usersvc.UserRepository {
	return &userRepository{users: make(map[string]usersvc.User)}
}

func (r *userRepository) Find(_ context.Context, uid string) (usersvc.User, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	user, ok := r.users[uid]
	if !ok {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepository) Save(_ context.Context, user usersvc.User) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.users[user.UID] = user
	return nil
}
