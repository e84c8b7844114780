// Package pactline provides an in-process Go SDK for the pactline
// contract negotiation engine.
//
// Usage:
//
//	client, err := pactline.New(
//		pactline.WithCatalog("catalog.yaml"),
//		pactline.WithStore("sqlite", "pactline.db"),
//		pactline.WithAuditLog("audit.jsonl"),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	c, err := client.Create(ctx, pactline.CreateRequest{ ... })
//	c, err = client.Submit(ctx, c.ID)
//	c, err = client.AcceptAndSign(ctx, c.ID, pactline.SigningProof{Party: pactline.Counterparty})
//
//	// Meter every read of the licensed data against the contract.
//	read := client.Meter(c.ID, fetchRows)
//	rows, err := read(pactline.WithRuntime(ctx, pactline.RuntimeContext{ConnectorDID: did}))
//	var blocked *pactline.BlockedError
//	if errors.As(err, &blocked) { ... }
//
//	// HTTP middleware:
//	http.Handle("/data", client.Middleware(pactline.FixedContract(c.ID))(dataHandler))
package pactline
