package submissions

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// DefaultCollection receives submissions when no collection is configured
const DefaultCollection = "submissions"

// FirestoreConfig locates the Firestore project. An empty CredentialsFile
// uses Application Default Credentials.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	Collection      string
}

// FirestoreWriter adds documents to a Firestore collection
type FirestoreWriter struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreWriter initializes a Firebase app and opens its Firestore client
func NewFirestoreWriter(ctx context.Context, cfg FirestoreConfig) (*FirestoreWriter, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}
	return NewFirestoreWriterFromClient(client, cfg.Collection), nil
}

// NewFirestoreWriterFromClient wraps an existing client, e.g. one pointed at
// the emulator
func NewFirestoreWriterFromClient(client *firestore.Client, collection string) *FirestoreWriter {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreWriter{client: client, collection: collection}
}

// Add implements Writer. The timestamp is assigned by Firestore.
func (w *FirestoreWriter) Add(ctx context.Context, doc Document) (string, error) {
	data := map[string]interface{}{
		"name":      doc.Name,
		"email":     doc.Email,
		"timestamp": firestore.ServerTimestamp,
	}
	if !doc.Timestamp.IsZero() {
		data["timestamp"] = doc.Timestamp
	}

	ref, _, err := w.client.Collection(w.collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add document to %s: %w", w.collection, err)
	}
	return ref.ID, nil
}

// Close releases the Firestore client
func (w *FirestoreWriter) Close() error {
	return w.client.Close()
}
