package grpcsubstrate

// FetchRequest carries an exact RECORD interest name.
type FetchRequest struct {
	Name string
}

// FetchResponse carries the requested record as a wire-framed blob (see
// internal/wire), or Found=false if the serving peer does not have it.
type FetchResponse struct {
	Found bool
	Blob  []byte
}

// InterestRequest carries a NOTIF or SYNC interest name, delivered to
// the serving peer's Handler.OnInterest purely as a side effect; the
// response carries nothing back (spec §6: NOTIF/SYNC never carry a
// payload of their own).
type InterestRequest struct {
	Name string
}

// InterestResponse is an empty acknowledgement.
type InterestResponse struct{}
