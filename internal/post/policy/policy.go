package policy

import (
	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/post/domain"
	"blogpost-backend/pkg/apperror"
)

// Modify allows update and destroy only for the post owner. A missing post is
// denied the same way so callers cannot probe for other users' ids.
func Modify(user *authdomain.User, post *domain.Post) error {
	if user == nil {
		return apperror.Unauthenticated("")
	}
	if post == nil || post.UserID != user.ID {
		return apperror.Forbidden(apperror.MsgOwnership)
	}
	return nil
}
