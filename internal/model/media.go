package model

// Media is a reference to an object held by the media delegate.
// ID is what the delegate needs to delete the object; URL is what clients
// use to fetch it.
type Media struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
