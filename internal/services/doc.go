// Package services holds the registry through which the HTTP layer and
// main reach folio's services (profile, inbox, replication, assistant,
// auth, live chat).
package services
