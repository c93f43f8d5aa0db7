// Package supabase is the REST transport shared by the identity and profile
// clients. It signs every call with the project's service key, optionally
// traces it with otelhttp, records durations and unwraps the backend's error
// bodies into *APIError.
//
// The client is constructed explicitly and injected; there is no process-wide
// instance.
//
//	client, err := supabase.NewClient(supabase.Config{
//		URL:        "https://project.supabase.co",
//		ServiceKey: serviceKey,
//	}, supabase.WithObserver(metrics))
package supabase
