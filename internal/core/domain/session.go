package domain

// Session : identité de l'appelant authentifié, extraite du JWT par le middleware.
type Session struct {
	UserID   string
	Username string
}

// RelationStatus : vue d'une relation depuis le point de vue d'un viewer.
type RelationStatus struct {
	IsFollowing       bool `json:"isFollowing"`
	IsFollowedBy      bool `json:"isFollowedBy"`
	FollowRequestSent bool `json:"followRequestSent"`
}
