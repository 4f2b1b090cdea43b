// Package bioatlas provides a Go client for the bioatlas question answering API.
//
// The client wraps the HTTP endpoints: batched answers, streamed answers
// delivered as typed events, and source lookup.
//
//	client := bioatlas.New("http://localhost:8080",
//	    bioatlas.WithAPIKey(os.Getenv("API_KEY")),
//	)
//
//	resp, _ := client.Ask(ctx, bioatlas.AskRequest{
//	    Question: "What does microgravity do to bone density?",
//	})
//	fmt.Println(resp.Answer)
//	for _, c := range resp.Citations {
//	    fmt.Printf("[%d] %s %s\n", c.Index, c.Title, c.URL)
//	}
//
// Streaming delivers the citation legend before the first text chunk:
//
//	_ = client.AskStream(ctx, req, func(ev bioatlas.Event) error {
//	    if ev.Type == bioatlas.EventChunk {
//	        fmt.Print(ev.Content)
//	    }
//	    return nil
//	})
package bioatlas
