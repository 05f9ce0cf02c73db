// Package oxia implements metadata.Store on top of Oxia.
//
// Horizon only needs single-key reads, conditional writes and ephemeral
// keys. Ephemeral keys back the retention lease: when a controller process
// dies its Oxia session expires and the lease key disappears, letting a
// standby controller take over.
//
//	store, err := oxia.New(oxia.Config{
//	    ServiceAddress: "localhost:6648",
//	    Namespace:      "default",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package oxia
