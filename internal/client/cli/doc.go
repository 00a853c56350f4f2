// Package cli provides the interactive till prompt.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// Every command goes through the services layer, so it works the same online
// and offline; offline writes are queued and replayed by the syncer.
//
//	register | login | logout
//	products | addproduct | find <barcode> | image <product-id> <file>
//	customers | addcustomer
//	checkout
//	delete <product|customer|sale> <id>
//	sync | status | history
//	exit | quit
package cli
