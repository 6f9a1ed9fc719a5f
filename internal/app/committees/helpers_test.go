package committees_test

import (
	"github.com/dalemusser/recruithub/internal/app/store/feedbacktokens"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func feedbackParams(appID primitive.ObjectID, committeeID *primitive.ObjectID, email string) feedbacktokens.IssueParams {
	return feedbacktokens.IssueParams{
		ApplicationID: appID,
		CommitteeID:   committeeID,
		ReviewerEmail: email,
		ReviewerName:  "Stranger",
		CommitteeRole: "interviewer",
	}
}
