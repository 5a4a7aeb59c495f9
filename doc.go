/*
Package magiclink provides passwordless, email-based user authentication
with single-use magic links, bound to a client-held session.

The flow is the following:

 1. A user wants to sign in. He/she provides his/her email to Controller.Authenticate().
 2. The user is looked up or created, and a magic link pointing to
    Config.BaseURL?token=<token> is emailed to him/her.
 3. The user opens the link. Controller.SignIn() validates the token, marks it
    used and the user verified, and stores the user in the session.
 4. The user can update or delete himself/herself with Controller.UpdateUser()
    and Controller.DeleteUser(), or sign out with Controller.SignOut().

A magic link can be used once, and expires after Config.LinkExpiration.
Requesting a new link does not invalidate earlier ones.

A Controller is created for every render with Authenticator.NewController(),
which reconciles the session with the stored user: the session is refreshed,
or dropped if the user no longer exists.

Users and magic links are stored through UserRepository and MagicLinkRepository.
MongoStore implements both on MongoDB, accessed via the official mongo-go driver;
MemoryStore keeps everything in memory.
*/
package magiclink
