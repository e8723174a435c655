package config

// NewCryptoForTest creates a Crypto config for testing purposes
func NewCryptoForTest(encryptionKey, stateSecret string) *Crypto {
	return &Crypto{
		encryptionKey: encryptionKey,
		stateSecret:   stateSecret,
	}
}

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(clientID, clientSecret, signingSecret string) *Slack {
	return &Slack{
		clientID:      clientID,
		clientSecret:  clientSecret,
		signingSecret: signingSecret,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, databaseID string) *Repository {
	return &Repository{
		backend:    backend,
		projectID:  projectID,
		databaseID: databaseID,
	}
}
