package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts     *AccountRepository
	Sequences    *SequenceRepository
	LoginHistory *LoginHistoryRepository
}

// NewRepositories wires all repositories backed by the provided executor, usually a *pgxpool.Pool.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Accounts:     NewAccountRepository(exec),
		Sequences:    NewSequenceRepository(exec),
		LoginHistory: NewLoginHistoryRepository(exec),
	}
}
