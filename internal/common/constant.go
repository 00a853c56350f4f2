// Package common contains constants, sentinel errors and small helpers shared
// by the possync client and server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on outbound requests.
const AccessTokenHeaderName = "access_token"

// TableAll is the table name used by sync log entries that are not bound to a
// single table.
const TableAll = "all"
