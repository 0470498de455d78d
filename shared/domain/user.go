package domain

// User is the cached identity record of the signed-in user, denormalized
// into optimistic messages so they render without a server round trip.
type User struct {
	Id        UserId `json:"id"`
	Name      string `json:"name"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}
