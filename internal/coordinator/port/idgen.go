package port

//go:generate mockgen -destination=../service/mocks/idgen_mock.go -package=mocks -source=idgen.go

// IDGenerator issues unique migration job ids.
type IDGenerator interface {
	Next() (int64, error)
}
