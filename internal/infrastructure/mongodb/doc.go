// Package mongodb connects to the MongoDB deployment that stores readings.
//
// Connect retries with exponential backoff so the service can start while
// the database container is still coming up. The returned Client exposes the
// configured collection for the reading repository and a ping-based
// HealthCheck for /health.
//
// Usage:
//
//	client, err := mongodb.Connect(ctx, cfg.MongoDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	repo := reading.NewMongoRepository(client.Collection())
package mongodb
