package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// InboxBoardName is the name of the board created on first launch.
const InboxBoardName = "Inbox"
