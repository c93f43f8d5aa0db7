// Package submissions stores contact form posts in a Firestore collection.
//
// Each accepted submission becomes a new document:
//
//	{"name": "...", "email": "...", "timestamp": <server timestamp>}
//
// Presence of both fields is the only check. Nothing is deduplicated and a
// failed write is not retried; the caller sees a 500 and may resubmit.
//
// # Usage
//
//	writer, err := submissions.NewFirestoreWriter(ctx, submissions.FirestoreConfig{
//		ProjectID:  "my-project",
//		Collection: "submissions",
//	})
//	if err != nil {
//		return err
//	}
//	defer writer.Close()
//
//	svc := submissions.NewService(writer)
//	router.Handle("/forms/submissions", submissions.NewHandler(svc, metrics)).Methods(http.MethodPost)
package submissions
