package model

import "fmt"

// States travel as their string names on the wire so API consumers and audit
// readers never see bare enum ordinals.

func (s RequestState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RequestState) UnmarshalText(b []byte) error {
	for st := RequestOpen; st <= RequestEvaluationFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown request state %q", b)
}

func (s OfferState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OfferState) UnmarshalText(b []byte) error {
	for st := OfferSubmitted; st <= OfferAccepted; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown offer state %q", b)
}

func (s AdvisorState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *AdvisorState) UnmarshalText(b []byte) error {
	st, err := ParseAdvisorState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
